package engine

// Direction is one of the four grid directions
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// RunState is the engine lifecycle flag
type RunState string

const (
	Running RunState = "running"
	Paused  RunState = "paused"
	Over    RunState = "over"
)

// DeathCause explains why a game reached RunState Over
type DeathCause string

const (
	CauseNone      DeathCause = ""
	CauseWall      DeathCause = "wall"
	CauseSelf      DeathCause = "self"
	CauseBoardFull DeathCause = "board_full"
)

const (
	// Validation constants
	MinGridSize     = 5
	MaxGridSize     = 50
	MinTickMillis   = 20
	MaxTickMillis   = 2000
	DefaultGridSize = 20
	DefaultTickMs   = 120
)

// Cell is an integer grid coordinate
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the cell shifted by one step in direction d
func (c Cell) Add(d Direction) Cell {
	dx, dy := d.Delta()
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// InBounds reports whether the cell lies inside an n x n grid
func (c Cell) InBounds(n int) bool {
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// GameConfig represents the game configuration from JSON
type GameConfig struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	GridSize       int       `json:"grid_size"`
	TickMillis     int       `json:"tick_ms"`
	Start          Cell      `json:"start"`
	StartDirection Direction `json:"start_direction"`
	Messages       struct {
		Welcome   string `json:"welcome"`
		AteFood   string `json:"ate_food"`
		HitWall   string `json:"hit_wall"`
		HitSelf   string `json:"hit_self"`
		BoardFull string `json:"board_full"`
		Paused    string `json:"paused"`
		Resumed   string `json:"resumed"`
	} `json:"messages"`
}

// GameState represents the complete game state
type GameState struct {
	Snake      []Cell     `json:"snake"`
	Direction  Direction  `json:"direction"`
	Food       Cell       `json:"food"`
	Score      int        `json:"score"`
	RunState   RunState   `json:"run_state"`
	GridSize   int        `json:"grid_size"`
	Tick       int        `json:"tick"`
	Message    string     `json:"message"`
	ConfigName string     `json:"config_name"`
	DeathCause DeathCause `json:"death_cause,omitempty"`

	// FoodEaten counts food-eating transitions since reset. It always equals
	// Score; it is kept separately so bonus scoring can diverge later.
	FoodEaten int `json:"food_eaten"`
}

// Head returns the first cell of the snake
func (gs *GameState) Head() Cell {
	return gs.Snake[0]
}

// Tail returns the last cell of the snake
func (gs *GameState) Tail() Cell {
	return gs.Snake[len(gs.Snake)-1]
}

// Length returns the number of cells in the snake
func (gs *GameState) Length() int {
	return len(gs.Snake)
}

// IsOver reports whether the game reached its terminal state
func (gs *GameState) IsOver() bool {
	return gs.RunState == Over
}

// Clone returns a deep copy safe to hand to renderers
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	cp := *gs
	cp.Snake = make([]Cell, len(gs.Snake))
	copy(cp.Snake, gs.Snake)
	return &cp
}
