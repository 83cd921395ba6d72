package loop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/wricardo/snake-arcade/game/engine"
)

// ErrStopped is returned by commands sent to a runner that has stopped
var ErrStopped = errors.New("runner stopped")

// Runner drives one engine. A single goroutine owns the engine and selects
// over the command inbox and a ticker, so ticks and commands never overlap.
//
// The ticker only exists while the game is running. Pausing or ending the
// game stops it; resuming or resetting starts a fresh one. Ticks missed while
// the goroutine was busy are dropped, never replayed.
type Runner struct {
	engine   engine.Engine
	inbox    chan command
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  chan struct{}
	runOnce  sync.Once

	// OnTick receives a snapshot after every applied tick and after every
	// command that changed the state. It runs on the loop goroutine and must
	// not call back into the runner synchronously.
	OnTick func(state *engine.GameState)

	// OnGameOver is called once for each transition into RunState Over
	OnGameOver func(state *engine.GameState)
}

// New creates a runner for e ticking at the engine's configured interval
func New(e engine.Engine) *Runner {
	return NewWithInterval(e, e.TickInterval())
}

// NewWithInterval creates a runner with an explicit tick period
func NewWithInterval(e engine.Engine, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = engine.DefaultTickMs * time.Millisecond
	}
	return &Runner{
		engine:   e,
		inbox:    make(chan command, 64),
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		started:  make(chan struct{}),
	}
}

// Interval returns the tick period
func (r *Runner) Interval() time.Duration {
	return r.interval
}

// Start runs the loop on a new goroutine
func (r *Runner) Start(ctx context.Context) {
	go r.Run(ctx)
}

// Run blocks until ctx is cancelled or Stop is called. Calling Run more than
// once returns immediately.
func (r *Runner) Run(ctx context.Context) {
	first := false
	r.runOnce.Do(func() { first = true })
	if !first {
		return
	}
	defer close(r.done)
	close(r.started)

	var ticker *time.Ticker
	var tickC <-chan time.Time

	startTicker := func() {
		if ticker != nil {
			ticker.Stop()
		}
		ticker = time.NewTicker(r.interval)
		tickC = ticker.C
	}
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
		}
		ticker = nil
		tickC = nil
	}
	defer stopTicker()

	// follow makes the ticker follow the run state. fresh forces a new period
	// even when a ticker already exists.
	follow := func(fresh bool) {
		running := r.engine.GetState().RunState == engine.Running
		switch {
		case running && (ticker == nil || fresh):
			startTicker()
		case !running && ticker != nil:
			stopTicker()
		}
	}
	follow(false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.quit:
			return
		case cmd := <-r.inbox:
			res, fresh := r.handle(cmd)
			follow(fresh)
			if cmd.reply != nil {
				cmd.reply <- res
			}
		case <-tickC:
			r.tick()
			follow(false)
		}
	}
}

func (r *Runner) tick() (*engine.GameState, engine.Step) {
	state, step := r.engine.Step()
	if step.Outcome == engine.OutcomeIdle {
		return state, step
	}
	r.notify()
	if step.Outcome.Terminal() {
		log.Printf("[TICK] game over at tick %d: %s (score %d)", state.Tick, step.Outcome, state.Score)
		if r.OnGameOver != nil {
			r.OnGameOver(r.engine.Snapshot())
		}
	}
	return state, step
}

func (r *Runner) notify() {
	if r.OnTick != nil {
		r.OnTick(r.engine.Snapshot())
	}
}

// handle applies a command on the loop goroutine. The second return value
// asks for a fresh ticker period.
func (r *Runner) handle(cmd command) (Result, bool) {
	var res Result
	fresh := false

	switch cmd.op {
	case opTurn:
		res.Accepted = r.engine.Turn(cmd.direction)
	case opPause:
		res.Accepted = r.engine.Pause()
	case opResume:
		res.Accepted = r.engine.Resume()
		fresh = res.Accepted
	case opToggle:
		before := r.engine.GetState().RunState
		after := r.engine.TogglePause()
		res.Accepted = before != after
		fresh = after == engine.Running && res.Accepted
	case opReset:
		r.engine.Reset()
		res.Accepted = true
		fresh = true
	case opSnapshot:
	case opStep:
		_, res.Step = r.tick()
		res.Accepted = res.Step.Outcome != engine.OutcomeIdle
	case opRestore:
		res.Err = r.engine.SetState(cmd.state)
		res.Accepted = res.Err == nil
		fresh = res.Accepted
	}

	if res.Accepted && cmd.op != opStep && cmd.op != opTurn {
		r.notify()
	}
	res.State = r.engine.Snapshot()
	return res, fresh
}

// send delivers a command and waits for its reply
func (r *Runner) send(ctx context.Context, cmd command) (Result, error) {
	cmd.reply = make(chan Result, 1)

	select {
	case r.inbox <- cmd:
	case <-r.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-r.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Turn buffers a direction for the next tick
func (r *Runner) Turn(ctx context.Context, d engine.Direction) (Result, error) {
	return r.send(ctx, command{op: opTurn, direction: d})
}

// Pause pauses a running game
func (r *Runner) Pause(ctx context.Context) (Result, error) {
	return r.send(ctx, command{op: opPause})
}

// Resume resumes a paused game
func (r *Runner) Resume(ctx context.Context) (Result, error) {
	return r.send(ctx, command{op: opResume})
}

// Toggle flips between running and paused
func (r *Runner) Toggle(ctx context.Context) (Result, error) {
	return r.send(ctx, command{op: opToggle})
}

// Reset starts a new game with the engine's configuration
func (r *Runner) Reset(ctx context.Context) (Result, error) {
	return r.send(ctx, command{op: opReset})
}

// Snapshot returns a copy of the current state
func (r *Runner) Snapshot(ctx context.Context) (*engine.GameState, error) {
	res, err := r.send(ctx, command{op: opSnapshot})
	if err != nil {
		return nil, err
	}
	return res.State, nil
}

// StepOnce applies exactly one tick if the game is running
func (r *Runner) StepOnce(ctx context.Context) (Result, error) {
	return r.send(ctx, command{op: opStep})
}

// Restore replaces the engine state, e.g. after loading a saved session
func (r *Runner) Restore(ctx context.Context, state *engine.GameState) (Result, error) {
	res, err := r.send(ctx, command{op: opRestore, state: state})
	if err != nil {
		return res, err
	}
	return res, res.Err
}

// Stop ends the loop. It is safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Done is closed when Run has returned
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Started is closed once Run has begun
func (r *Runner) Started() <-chan struct{} {
	return r.started
}
