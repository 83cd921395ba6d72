// Package engine provides the core game logic for the snake arcade.
//
// The engine package implements the game mechanics including:
//   - Grid-based movement with a closed boundary (no wraparound)
//   - Wall and self collision detection
//   - Food placement by rejection sampling over free cells
//   - A single-slot input buffer for directional requests
//   - Configuration loading and validation
//
// Core Types:
//
// GameState is the complete state of one game. Advance is the pure
// transition function that applies one tick to a GameState. Engine wraps a
// GameState together with its InputBuffer, configuration and random source,
// and is what the tick scheduler drives.
//
// Usage:
//
//	config, err := engine.LoadConfigByName("classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine.Turn(engine.Up)
//	state := gameEngine.Step()
//
// Game Rules:
//
// The snake starts as a single cell and moves one cell per tick in its
// current direction. Requests for the exact opposite of the direction applied
// on the previous tick are ignored. Eating food grows the snake by one cell
// and scores one point. Leaving the grid or running into the body ends the
// game; the tail cell is not an obstacle because it vacates on the same tick.
package engine
