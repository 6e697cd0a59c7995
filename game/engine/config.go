package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidateGameConfig validates a game configuration for correctness and playability.
// Zero values for InitialTiles and FourProbability are not defaults; call
// ApplyDefaults first when loading user supplied files.
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is required")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}

	// Validate board size
	if config.BoardSize < MinBoardSize {
		return fmt.Errorf("config validation: %w, got %d", ErrInvalidBoardSize, config.BoardSize)
	}
	if config.BoardSize > MaxBoardSize {
		return fmt.Errorf("config validation: board_size must be at most %d, got %d", MaxBoardSize, config.BoardSize)
	}

	// Validate spawn settings
	if config.FourProbability < 0 || config.FourProbability > 1 {
		return fmt.Errorf("config validation: four_probability must be between 0 and 1, got %g", config.FourProbability)
	}
	cells := config.BoardSize * config.BoardSize
	if config.InitialTiles < 0 || config.InitialTiles > cells {
		return fmt.Errorf("config validation: initial_tiles must be between 0 and %d, got %d", cells, config.InitialTiles)
	}

	// Validate target
	if config.TargetTile != 0 && (!IsPowerOfTwoTile(config.TargetTile) || config.TargetTile < 4) {
		return fmt.Errorf("config validation: target_tile must be 0 or a power of two of at least 4, got %d", config.TargetTile)
	}

	return nil
}

// ApplyDefaults fills unset optional fields of a loaded configuration
func ApplyDefaults(config *GameConfig) {
	if config.BoardSize == 0 {
		config.BoardSize = DefaultBoardSize
	}
	if config.InitialTiles == 0 {
		config.InitialTiles = DefaultInitialTiles
	}
	if config.FourProbability == 0 {
		config.FourProbability = DefaultFourProbability
	}
}

// DefaultGameConfig returns the classic 4x4 variant
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		Name:            "classic",
		Description:     "Classic 4x4 board, reach 2048",
		BoardSize:       DefaultBoardSize,
		FourProbability: DefaultFourProbability,
		InitialTiles:    DefaultInitialTiles,
		TargetTile:      DefaultTargetTile,
	}
}

// ParseGameConfig decodes a configuration from JSON or YAML. The format is
// chosen from the file extension; an unknown extension tries JSON, then YAML.
func ParseGameConfig(filename string, data []byte) (*GameConfig, error) {
	var config GameConfig

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			if yamlErr := yaml.Unmarshal(data, &config); yamlErr != nil {
				return nil, fmt.Errorf("failed to parse config as JSON or YAML: %w", err)
			}
		}
	}

	ApplyDefaults(&config)
	return &config, nil
}

// LoadGameConfig loads and validates a game configuration file
func LoadGameConfig(filename string) (*GameConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseGameConfig(filename, data)
	if err != nil {
		return nil, err
	}

	// Validate the loaded configuration
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}
