package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate grid size
	if config.GridSize < MinGridSize || config.GridSize > MaxGridSize {
		return fmt.Errorf("config validation: grid_size must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.GridSize)
	}

	// Validate tick period
	if config.TickMillis < MinTickMillis || config.TickMillis > MaxTickMillis {
		return fmt.Errorf("config validation: tick_ms must be between %d and %d, got %d", MinTickMillis, MaxTickMillis, config.TickMillis)
	}

	// Validate start
	if !config.Start.InBounds(config.GridSize) {
		return fmt.Errorf("config validation: start (%d,%d) is outside the %dx%d grid",
			config.Start.X, config.Start.Y, config.GridSize, config.GridSize)
	}
	if !config.StartDirection.Valid() {
		return fmt.Errorf("config validation: start_direction must be one of up, down, left, right, got '%s'", config.StartDirection)
	}

	// Validate messages
	if config.Messages.Welcome == "" {
		return fmt.Errorf("config validation: messages.welcome is required")
	}
	if config.Messages.HitWall == "" {
		return fmt.Errorf("config validation: messages.hit_wall is required")
	}
	if config.Messages.HitSelf == "" {
		return fmt.Errorf("config validation: messages.hit_self is required")
	}

	// Validate format strings
	if !ValidScoreFormat(config.Messages.AteFood) {
		return fmt.Errorf("config validation: messages.ate_food must contain exactly one %%d for score, got %q", config.Messages.AteFood)
	}

	return nil
}

// ValidScoreFormat reports whether format takes the score as its only
// argument: exactly one %d verb, optionally with flags or a width. %% is a
// literal percent sign.
func ValidScoreFormat(format string) bool {
	verbs := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			continue
		}
		for i < len(format) && strings.IndexByte("+-# 0123456789", format[i]) >= 0 {
			i++
		}
		if i >= len(format) || format[i] != 'd' {
			return false
		}
		verbs++
	}
	return verbs == 1
}

// TickInterval returns the tick period of the configuration
func (c *GameConfig) TickInterval() time.Duration {
	if c == nil || c.TickMillis <= 0 {
		return DefaultTickMs * time.Millisecond
	}
	return time.Duration(c.TickMillis) * time.Millisecond
}

// DefaultGameConfig returns the built-in classic configuration:
// a 20x20 grid, 120 ms ticks, the snake starting at (10,10) heading right.
func DefaultGameConfig() *GameConfig {
	config := &GameConfig{
		Name:           "Classic",
		Description:    "Classic 20x20 snake at 120 ms per tick",
		GridSize:       DefaultGridSize,
		TickMillis:     DefaultTickMs,
		Start:          Cell{X: 10, Y: 10},
		StartDirection: Right,
	}
	config.Messages.Welcome = "Use arrow keys or WASD. Don't hit yourself."
	config.Messages.AteFood = "Yum! Score: %d"
	config.Messages.HitWall = "Ouch, that's a wall! Game Over!"
	config.Messages.HitSelf = "You bit yourself! Game Over!"
	config.Messages.BoardFull = "The board is full. You win!"
	config.Messages.Paused = "Paused"
	config.Messages.Resumed = "Go!"
	return config
}

// LoadGameConfig loads a game configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return ParseGameConfig(data)
}

// ParseGameConfig decodes and validates a JSON configuration
func ParseGameConfig(data []byte) (*GameConfig, error) {
	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigByName loads a game configuration by name from the configs
// directory, honouring CONFIG_DIR
func LoadConfigByName(configName string) (*GameConfig, error) {
	if !strings.HasSuffix(configName, ".json") {
		configName = configName + ".json"
	}

	dir := "configs"
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		dir = configDir
	}

	data, err := os.ReadFile(filepath.Join(dir, configName))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file '%s' not found", configName)
	}
	if err != nil {
		return nil, err
	}

	config, err := ParseGameConfig(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
	}
	return config, nil
}

// InitGameStateFromConfig creates a new game state using the provided configuration
func InitGameStateFromConfig(config *GameConfig, rng RandomSource) *GameState {
	if config == nil {
		config = DefaultGameConfig()
	}

	snake := []Cell{config.Start}
	food, _ := PlaceFood(snake, config.GridSize, rng)

	return &GameState{
		Snake:      snake,
		Direction:  config.StartDirection,
		Food:       food,
		Score:      0,
		RunState:   Running,
		GridSize:   config.GridSize,
		Tick:       0,
		Message:    config.Messages.Welcome,
		ConfigName: config.Name,
		FoodEaten:  0,
	}
}
