// Command validate checks the snake presets in a configs directory
// (../configs by default). It checks:
//   - JSON structure, unknown keys and required fields
//   - Grid size and tick period limits
//   - Start cell inside the grid and a valid start direction
//   - Required messages and a single %d placeholder in ate_food
//   - Runway: the snake must not hit a wall on its first tick
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/snake-arcade/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single preset file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.GameConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if config.Name == "" {
		result.fail("name is required")
	}
	if config.Description == "" {
		result.fail("description is required")
	}

	if config.GridSize < engine.MinGridSize || config.GridSize > engine.MaxGridSize {
		result.fail("grid_size must be between %d and %d, got %d", engine.MinGridSize, engine.MaxGridSize, config.GridSize)
	}
	if config.TickMillis < engine.MinTickMillis || config.TickMillis > engine.MaxTickMillis {
		result.fail("tick_ms must be between %d and %d, got %d", engine.MinTickMillis, engine.MaxTickMillis, config.TickMillis)
	}

	if !config.Start.InBounds(config.GridSize) {
		result.fail("start (%d,%d) is outside the %dx%d grid", config.Start.X, config.Start.Y, config.GridSize, config.GridSize)
	}
	if !config.StartDirection.Valid() {
		result.fail("start_direction must be one of up, down, left, right, got '%s'", config.StartDirection)
	}

	required := map[string]string{
		"welcome":  config.Messages.Welcome,
		"ate_food": config.Messages.AteFood,
		"hit_wall": config.Messages.HitWall,
		"hit_self": config.Messages.HitSelf,
	}
	for _, key := range []string{"welcome", "ate_food", "hit_wall", "hit_self"} {
		if required[key] == "" {
			result.fail("Missing required message: %s", key)
		}
	}
	if config.Messages.AteFood != "" && !engine.ValidScoreFormat(config.Messages.AteFood) {
		result.fail("messages.ate_food must contain exactly one %%d for the score")
	}

	if result.Valid {
		runway := runwayTicks(&config)
		if runway == 0 {
			result.fail("Runway: start (%d,%d) heading %s hits the wall on the first tick",
				config.Start.X, config.Start.Y, config.StartDirection)
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Runway: %d ticks (%s) before the wall", runway, config.TickInterval()*time.Duration(runway)))
		}
	}

	// The engine is the final authority; it must accept what passed here
	if result.Valid {
		if _, err := engine.ParseGameConfig(data); err != nil {
			result.fail("Rejected by engine: %v", err)
		}
	}

	if result.Valid {
		cells := config.GridSize * config.GridSize
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", config.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d (%d cells, max score %d)", config.GridSize, config.GridSize, cells, cells-1))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Tick: %dms (%.1f cells/s, %s to cross)", config.TickMillis,
			1000/float64(config.TickMillis), config.TickInterval()*time.Duration(config.GridSize)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Start: (%d,%d) heading %s", config.Start.X, config.Start.Y, config.StartDirection))
	}

	return result
}

// runwayTicks counts the ticks the snake survives from its start cell when
// no input is given
func runwayTicks(config *engine.GameConfig) int {
	ticks := 0
	for c := config.Start.Add(config.StartDirection); c.InBounds(config.GridSize); c = c.Add(config.StartDirection) {
		ticks++
	}
	return ticks
}

// run validates every *.json file in configDir, printing a concise report.
// It returns false if any preset is invalid.
func run(configDir string) (bool, error) {
	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		return false, fmt.Errorf("error finding config files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no config files in %s", configDir)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
	}
	return allValid, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "validate",
		Usage: "Validate snake presets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "../configs", Usage: "Directory containing presets", Sources: cli.EnvVars("CONFIG_DIR")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ok, err := run(cmd.String("dir"))
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
