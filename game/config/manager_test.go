package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/mergegame/game/engine"
)

func createValidConfig(name string, size int) *engine.GameConfig {
	return &engine.GameConfig{
		Name:            name,
		Description:     "Test configuration",
		BoardSize:       size,
		FourProbability: 0.1,
		InitialTiles:    2,
		TargetTile:      256,
	}
}

func writeConfigFile(t *testing.T, dir, filename string, config *engine.GameConfig) {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0644))
}

func writeRawFile(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644))
}

func TestNewManager(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := NewManager(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("regular file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "classic.json")
		require.NoError(t, os.WriteFile(file, []byte(`{"name":"classic"}`), 0o644))

		_, err := NewManager(file)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config path is not a directory")
	})

	t.Run("empty directory falls back to built-in classic", func(t *testing.T) {
		m, err := NewManager(t.TempDir())
		require.NoError(t, err)

		def := m.GetDefault()
		require.NotNil(t, def)
		assert.Equal(t, "classic", def.Name)
		assert.Equal(t, engine.DefaultBoardSize, def.BoardSize)
	})

	t.Run("classic file is the default", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "classic.json", createValidConfig("Classic File", 4))
		writeConfigFile(t, dir, "another.json", createValidConfig("Another", 5))

		m, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "Classic File", m.GetDefault().Name)
	})

	t.Run("first valid file without classic", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "b.json", createValidConfig("B", 5))
		writeConfigFile(t, dir, "a.json", createValidConfig("A", 3))

		m, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "A", m.GetDefault().Name)
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic.json", createValidConfig("Classic", 4))
	writeRawFile(t, dir, "mini.yaml", "name: mini\ndescription: tiny\nboard_size: 3\ntarget_tile: 256\n")
	writeRawFile(t, dir, "wide.yml", "name: wide\nboard_size: 5\n")
	writeRawFile(t, dir, "broken.json", "{")
	writeRawFile(t, dir, "huge.json", `{"name": "huge", "board_size": 99}`)

	m, err := NewManager(dir)
	require.NoError(t, err)

	tests := []struct {
		name     string
		load     string
		wantName string
		wantSize int
		wantErr  error
	}{
		{"json by id", "classic", "Classic", 4, nil},
		{"json with extension", "classic.json", "Classic", 4, nil},
		{"yaml by id", "mini", "mini", 3, nil},
		{"yml by id", "wide", "wide", 5, nil},
		{"missing", "nonexistent", "", 0, ErrConfigNotFound},
		{"path traversal", "../classic", "", 0, ErrConfigNotFound},
		{"broken file", "broken", "", 0, ErrInvalidConfig},
		{"invalid variant", "huge", "", 0, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := m.LoadConfig(tt.load)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, config.Name)
			assert.Equal(t, tt.wantSize, config.BoardSize)
		})
	}
}

func TestManager_ListConfigs(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic.json", createValidConfig("Classic", 4))
	writeRawFile(t, dir, "mini.yaml", "name: mini\nboard_size: 3\ntarget_tile: 256\n")
	writeRawFile(t, dir, "invalid.json", `{"name": ""}`)
	writeRawFile(t, dir, "notes.txt", "not a config")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.json"), 0755))

	m, err := NewManager(dir)
	require.NoError(t, err)

	configs, err := m.ListConfigs()
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "classic", configs[0].ConfigID)
	assert.Equal(t, "classic.json", configs[0].Filename)
	assert.Equal(t, 4, configs[0].BoardSize)

	assert.Equal(t, "mini", configs[1].ConfigID)
	assert.Equal(t, "mini.yaml", configs[1].Filename)
	assert.Equal(t, 3, configs[1].BoardSize)
	assert.Equal(t, 256, configs[1].TargetTile)
}

func TestManager_SetDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic.json", createValidConfig("Classic", 4))
	writeConfigFile(t, dir, "large.json", createValidConfig("Large", 6))

	m, err := NewManager(dir)
	require.NoError(t, err)

	require.NoError(t, m.SetDefault("large"))
	assert.Equal(t, "Large", m.GetDefault().Name)

	assert.ErrorIs(t, m.SetDefault("missing"), ErrConfigNotFound)
	assert.Equal(t, "Large", m.GetDefault().Name)
}

func TestManager_SaveConfig(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	config := createValidConfig("Saved", 5)
	require.NoError(t, m.SaveConfig("saved", config))

	_, err = os.Stat(filepath.Join(dir, "saved.json"))
	require.NoError(t, err)

	// A fresh manager reads it back from disk
	fresh, err := NewManager(dir)
	require.NoError(t, err)
	loaded, err := fresh.LoadConfig("saved")
	require.NoError(t, err)
	assert.Equal(t, config, loaded)

	invalid := createValidConfig("Bad", 0)
	assert.ErrorIs(t, m.SaveConfig("bad", invalid), ErrInvalidConfig)
	assert.ErrorIs(t, m.SaveConfig("../escape", config), ErrInvalidConfig)
}

func TestManager_CachingBehavior(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "cached.json", createValidConfig("Original", 4))

	m, err := NewManager(dir)
	require.NoError(t, err)

	first, err := m.LoadConfig("cached")
	require.NoError(t, err)

	// Disk changes are invisible until the cache is refreshed
	writeConfigFile(t, dir, "cached.json", createValidConfig("Modified", 5))
	second, err := m.LoadConfig("cached")
	require.NoError(t, err)
	assert.Same(t, first, second)

	m.RefreshCache()
	third, err := m.LoadConfig("cached")
	require.NoError(t, err)
	assert.Equal(t, "Modified", third.Name)
}

func TestManager_Watch(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic.json", createValidConfig("Before", 4))

	m, err := NewManager(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- m.watch(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	}

	writeConfigFile(t, dir, "classic.json", createValidConfig("After", 5))

	assert.Eventually(t, func() bool {
		config, err := m.LoadConfig("classic")
		return err == nil && config.Name == "After"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		return m.GetDefault().Name == "After"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic.json", createValidConfig("Classic", 4))
	writeRawFile(t, dir, "mini.yaml", "name: mini\nboard_size: 3\n")

	m, err := NewManager(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "classic"
			if i%2 == 0 {
				name = "mini"
			}
			for j := 0; j < 10; j++ {
				_, err := m.LoadConfig(name)
				assert.NoError(t, err)
				if j%5 == 0 {
					m.RefreshCache()
				}
				_, _ = m.ListConfigs()
				_ = m.GetDefault()
			}
		}(i)
	}
	wg.Wait()
}
