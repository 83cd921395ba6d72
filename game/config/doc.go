// Package config manages the snake presets stored as JSON files.
//
// Each preset sets the grid size, tick period, start cell and direction and
// the messages shown to the player. The shipped presets are:
//   - classic: 20x20 grid at 120 ms per tick
//   - slow: 20x20 grid at 200 ms per tick
//   - fast: 20x20 grid at 70 ms per tick
//   - tiny: 10x10 grid at 150 ms per tick
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameConfig, err := manager.LoadConfig("fast")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
package config
