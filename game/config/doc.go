// Package config provides board variant management for the merge puzzle.
//
// The config package handles:
//   - Loading variants from JSON or YAML files
//   - Validation through engine.ValidateGameConfig
//   - Default variant selection
//   - Variant discovery and listing
//   - Dropping cached variants when files change on disk
//
// Configuration Format:
//
// Each file in the configs directory describes one variant:
//
//	name: mini
//	description: 3x3 board, reach 256
//	board_size: 3
//	four_probability: 0.1
//	initial_tiles: 2
//	target_tile: 256
//
// Unset board_size, initial_tiles and four_probability take the classic
// defaults. Variants are addressed by file name without extension, so
// "mini" resolves to mini.json, mini.yaml or mini.yml.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameConfig, err := manager.LoadConfig("mini")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
//
//	// Reload on edits until ctx is cancelled
//	go manager.Watch(ctx)
package config
