package loop

import "github.com/wricardo/snake-arcade/game/engine"

type op int

const (
	opTurn op = iota
	opPause
	opResume
	opToggle
	opReset
	opSnapshot
	opStep
	opRestore
)

func (o op) String() string {
	switch o {
	case opTurn:
		return "turn"
	case opPause:
		return "pause"
	case opResume:
		return "resume"
	case opToggle:
		return "toggle"
	case opReset:
		return "reset"
	case opSnapshot:
		return "snapshot"
	case opStep:
		return "step"
	case opRestore:
		return "restore"
	}
	return "unknown"
}

// command is delivered to the loop goroutine through the inbox
type command struct {
	op        op
	direction engine.Direction
	state     *engine.GameState
	reply     chan Result
}

// Result is the reply to a command
type Result struct {
	// Accepted reports whether the command changed anything
	Accepted bool
	// State is a snapshot taken after the command was applied
	State *engine.GameState
	// Step is set for StepOnce
	Step engine.Step
	// Err is set when the command was refused by the engine
	Err error
}
