// Command play runs a snake game in the terminal. The game runs on an
// in-process tick loop; tcell draws every snapshot the loop publishes.
//
// Arrow keys or WASD steer, p or space pauses, r restarts, q or Esc quits.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/snake-arcade/game/config"
	"github.com/wricardo/snake-arcade/game/engine"
	"github.com/wricardo/snake-arcade/game/loop"
)

type actionKind int

const (
	actionNone actionKind = iota
	actionTurn
	actionToggle
	actionReset
	actionQuit
)

type action struct {
	kind      actionKind
	direction engine.Direction
}

// keyAction maps a key press to a game action
func keyAction(ev *tcell.EventKey) action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return action{kind: actionQuit}
	case tcell.KeyUp:
		return action{kind: actionTurn, direction: engine.Up}
	case tcell.KeyDown:
		return action{kind: actionTurn, direction: engine.Down}
	case tcell.KeyLeft:
		return action{kind: actionTurn, direction: engine.Left}
	case tcell.KeyRight:
		return action{kind: actionTurn, direction: engine.Right}
	case tcell.KeyRune:
	default:
		return action{}
	}

	switch r := ev.Rune(); r {
	case 'q', 'Q':
		return action{kind: actionQuit}
	case 'p', 'P', ' ':
		return action{kind: actionToggle}
	case 'r', 'R':
		return action{kind: actionReset}
	default:
		if d, ok := engine.KeyToDirection(string(r)); ok {
			return action{kind: actionTurn, direction: d}
		}
	}
	return action{}
}

// game couples a runner with the screen it draws on
type game struct {
	screen tcell.Screen
	runner *loop.Runner
	frames chan *engine.GameState
	title  string
}

func newGame(screen tcell.Screen, cfg *engine.GameConfig) (*game, error) {
	eng, err := engine.NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	g := &game{
		screen: screen,
		runner: loop.New(eng),
		frames: make(chan *engine.GameState, 1),
		title:  cfg.Name,
	}
	g.runner.OnTick = g.publish
	return g, nil
}

// publish keeps only the newest snapshot; the loop goroutine never waits
// for the screen
func (g *game) publish(state *engine.GameState) {
	for {
		select {
		case g.frames <- state:
			return
		default:
		}
		select {
		case <-g.frames:
		default:
		}
	}
}

// apply forwards an action to the runner. It returns false on quit.
func (g *game) apply(ctx context.Context, a action) (bool, error) {
	var err error
	switch a.kind {
	case actionQuit:
		return false, nil
	case actionTurn:
		_, err = g.runner.Turn(ctx, a.direction)
	case actionToggle:
		_, err = g.runner.Toggle(ctx)
	case actionReset:
		_, err = g.runner.Reset(ctx)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *game) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.runner.Start(ctx)
	defer g.runner.Stop()

	state, err := g.runner.Snapshot(ctx)
	if err != nil {
		return err
	}
	g.draw(state)

	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go g.screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return nil
		case state := <-g.frames:
			g.draw(state)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				g.screen.Sync()
				if state, err := g.runner.Snapshot(ctx); err == nil {
					g.draw(state)
				}
			case *tcell.EventKey:
				more, err := g.apply(ctx, keyAction(ev))
				if err != nil || !more {
					return err
				}
			}
		}
	}
}

var (
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	snakeStyle  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	headStyle   = tcell.StyleDefault.Foreground(tcell.ColorLime).Bold(true)
	foodStyle   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	textStyle   = tcell.StyleDefault
)

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

// draw renders the board two columns per cell inside a border, with the
// score line above and the game message below
func (g *game) draw(state *engine.GameState) {
	s := g.screen
	s.Clear()

	n := state.GridSize
	drawText(s, 0, 0, textStyle, fmt.Sprintf("%s  Score: %d  Length: %d  %s", g.title, state.Score, state.Length(), state.RunState))

	top, width := 1, n*2+2
	for x := 0; x < width; x++ {
		s.SetContent(x, top, '─', nil, borderStyle)
		s.SetContent(x, top+n+1, '─', nil, borderStyle)
	}
	for y := top; y <= top+n+1; y++ {
		s.SetContent(0, y, '│', nil, borderStyle)
		s.SetContent(width-1, y, '│', nil, borderStyle)
	}
	s.SetContent(0, top, '┌', nil, borderStyle)
	s.SetContent(width-1, top, '┐', nil, borderStyle)
	s.SetContent(0, top+n+1, '└', nil, borderStyle)
	s.SetContent(width-1, top+n+1, '┘', nil, borderStyle)

	cell := func(c engine.Cell, r rune, style tcell.Style) {
		if !c.InBounds(n) {
			return
		}
		x, y := 1+c.X*2, top+1+c.Y
		s.SetContent(x, y, r, nil, style)
		s.SetContent(x+1, y, r, nil, style)
	}

	cell(state.Food, '●', foodStyle)
	for i := len(state.Snake) - 1; i >= 0; i-- {
		if i == 0 {
			cell(state.Snake[i], '█', headStyle)
		} else {
			cell(state.Snake[i], '▓', snakeStyle)
		}
	}

	footer := state.Message
	switch state.RunState {
	case engine.Over:
		footer = state.Message + "  r: restart  q: quit"
	case engine.Paused:
		footer = "Paused  p: resume  q: quit"
	}
	drawText(s, 0, top+n+2, textStyle, footer)
	s.Show()
}

func main() {
	cmd := &cli.Command{
		Name:  "play",
		Usage: "Play snake in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game presets", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "config", Value: "classic", Usage: "Preset to play"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config-dir"), cmd.String("config"))
			if err != nil {
				return err
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("failed to create screen: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("failed to init screen: %w", err)
			}
			defer screen.Fini()
			screen.SetStyle(tcell.StyleDefault)

			g, err := newGame(screen, cfg)
			if err != nil {
				return err
			}
			return g.run(ctx)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the preset from dir, falling back to the built-in
// default when the directory is missing
func loadConfig(dir, name string) (*engine.GameConfig, error) {
	manager, err := config.NewManager(dir)
	if err != nil {
		log.Printf("Warning: %v; using the built-in default", err)
		return engine.DefaultGameConfig(), nil
	}
	cfg, err := manager.LoadConfig(name)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
