package engine

// RandomSource is the uniform integer generator used for food placement.
// *math/rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

// Occupied reports whether c is one of the snake cells
func Occupied(snake []Cell, c Cell) bool {
	for _, s := range snake {
		if s == c {
			return true
		}
	}
	return false
}

// PlaceFood draws a uniformly random cell of an n x n grid that is not
// occupied by the snake, retrying until a free cell is found. It returns
// false only when the snake covers the whole grid.
func PlaceFood(snake []Cell, n int, rng RandomSource) (Cell, bool) {
	if n <= 0 || len(snake) >= n*n {
		return Cell{}, false
	}

	occupied := make(map[Cell]struct{}, len(snake))
	for _, c := range snake {
		occupied[c] = struct{}{}
	}

	for {
		c := Cell{X: rng.Intn(n), Y: rng.Intn(n)}
		if _, taken := occupied[c]; !taken {
			return c, true
		}
	}
}

// FreeCells counts the cells not occupied by the snake
func FreeCells(snake []Cell, n int) int {
	seen := make(map[Cell]struct{}, len(snake))
	for _, c := range snake {
		if c.InBounds(n) {
			seen[c] = struct{}{}
		}
	}
	return n*n - len(seen)
}

// ManhattanDistance calculates the Manhattan distance between two cells
func ManhattanDistance(from, to Cell) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// SafeDirections returns the directions whose next cell is neither wall nor
// body, in the order of Directions. The reverse of the current direction is
// never included.
func SafeDirections(state *GameState) []string {
	var safe []string
	if state == nil || len(state.Snake) == 0 {
		return safe
	}
	for _, d := range Directions {
		if IsOpposite(state.Direction, d) {
			continue
		}
		next := state.Head().Add(d)
		if next.InBounds(state.GridSize) && !HitsBody(state.Snake, next) {
			safe = append(safe, string(d))
		}
	}
	return safe
}

// RenderGrid draws the state as text rows: H head, o body, * food, . empty
func RenderGrid(state *GameState) []string {
	n := state.GridSize
	rows := make([][]byte, n)
	for y := range rows {
		rows[y] = make([]byte, n)
		for x := range rows[y] {
			rows[y][x] = '.'
		}
	}
	if state.Food.InBounds(n) {
		rows[state.Food.Y][state.Food.X] = '*'
	}
	for i, c := range state.Snake {
		if !c.InBounds(n) {
			continue
		}
		if i == 0 {
			rows[c.Y][c.X] = 'H'
		} else {
			rows[c.Y][c.X] = 'o'
		}
	}

	out := make([]string, n)
	for y, row := range rows {
		out[y] = string(row)
	}
	return out
}
