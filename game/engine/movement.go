package engine

import (
	"fmt"
	"strings"
)

// Outcome describes what a single tick did
type Outcome string

const (
	OutcomeIdle      Outcome = "idle" // not running, nothing applied
	OutcomeMoved     Outcome = "moved"
	OutcomeAte       Outcome = "ate"
	OutcomeWall      Outcome = "wall"
	OutcomeSelf      Outcome = "self"
	OutcomeBoardFull Outcome = "board_full"
)

// Terminal reports whether the outcome ended the game
func (o Outcome) Terminal() bool {
	return o == OutcomeWall || o == OutcomeSelf || o == OutcomeBoardFull
}

// Directions lists all directions in a stable order
var Directions = []Direction{Up, Down, Left, Right}

// ParseDirection converts user input into a Direction
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, true
	case Down:
		return Down, true
	case Left:
		return Left, true
	case Right:
		return Right, true
	}
	return "", false
}

// Valid reports whether d is one of the four directions
func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	return ""
}

// Delta returns the unit step for the direction; y grows downwards
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// IsOpposite reports whether a and b point in exactly reverse directions
func IsOpposite(a, b Direction) bool {
	return a.Valid() && a.Opposite() == b
}

// ResolveDirection returns the direction actually applied in a tick.
// The request is ignored when it is invalid or reverses current.
func ResolveDirection(current, requested Direction) Direction {
	if !requested.Valid() || IsOpposite(current, requested) {
		return current
	}
	return requested
}

// Step records what a single call to Advance did
type Step struct {
	Outcome   Outcome   `json:"outcome"`
	Direction Direction `json:"direction"` // effective direction
	Target    Cell      `json:"target"`    // cell the head tried to enter
}

// Advance applies one tick to state and returns the next state.
// The input state is never mutated. When the state is not running the same
// pointer is returned with OutcomeIdle.
func Advance(state *GameState, requested Direction, rng RandomSource) (*GameState, Step) {
	if state == nil || state.RunState != Running || len(state.Snake) == 0 {
		return state, Step{Outcome: OutcomeIdle}
	}

	next := state.Clone()
	dir := ResolveDirection(state.Direction, requested)
	head := state.Head().Add(dir)
	step := Step{Direction: dir, Target: head}

	// Closed boundary: the snake never enters the wall
	if !head.InBounds(state.GridSize) {
		next.RunState = Over
		next.DeathCause = CauseWall
		step.Outcome = OutcomeWall
		return next, step
	}

	if HitsBody(state.Snake, head) {
		next.RunState = Over
		next.DeathCause = CauseSelf
		step.Outcome = OutcomeSelf
		return next, step
	}

	next.Direction = dir
	next.Tick++

	grown := make([]Cell, 0, len(state.Snake)+1)
	grown = append(grown, head)
	grown = append(grown, state.Snake...)

	if head == state.Food {
		next.Snake = grown
		next.Score++
		next.FoodEaten++

		food, ok := PlaceFood(next.Snake, next.GridSize, rng)
		if !ok {
			next.RunState = Over
			next.DeathCause = CauseBoardFull
			step.Outcome = OutcomeBoardFull
			return next, step
		}
		next.Food = food
		step.Outcome = OutcomeAte
		return next, step
	}

	next.Snake = grown[:len(grown)-1]
	step.Outcome = OutcomeMoved
	return next, step
}

// HitsBody reports whether head collides with the snake body.
// The current tail is excluded because it vacates on the same tick.
func HitsBody(snake []Cell, head Cell) bool {
	if len(snake) == 0 {
		return false
	}
	for _, c := range snake[:len(snake)-1] {
		if c == head {
			return true
		}
	}
	return false
}

// stepMessage renders a human readable message for the tick
func stepMessage(config *GameConfig, state *GameState, step Step) string {
	m := config.Messages
	switch step.Outcome {
	case OutcomeAte:
		return fmt.Sprintf(m.AteFood, state.Score)
	case OutcomeWall:
		return fmt.Sprintf("%s [Hit: boundary at (%d,%d) moving %s]", m.HitWall, step.Target.X, step.Target.Y, step.Direction)
	case OutcomeSelf:
		return fmt.Sprintf("%s [Hit: body at (%d,%d)]", m.HitSelf, step.Target.X, step.Target.Y)
	case OutcomeBoardFull:
		if m.BoardFull != "" {
			return m.BoardFull
		}
		return fmt.Sprintf("Board full! Final score: %d", state.Score)
	}
	return state.Message
}
