package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/mcp-training/mergegame/game/engine"
	"github.com/wricardo/mcp-training/mergegame/game/results"
)

// Sentinel errors shared by the storage packages and the transports
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string, seed *uint64) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error)
	NewGame(ctx context.Context, sessionID string) (*SessionInfo, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error

	// Results
	Leaderboard(ctx context.Context, limit int) ([]results.Result, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig, seed *uint64) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Restart(id string) (*Session, error)
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// ResultStore receives a summary of every finished game
type ResultStore interface {
	Record(ctx context.Context, r results.Result) error
	Top(ctx context.Context, limit int) ([]results.Result, error)
}

// EventPublisher forwards gameplay events to external subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event GameEvent) error
}

// Session represents an active game session. A session holds one game at a
// time; starting a new game swaps in a freshly constructed engine and GameID.
type Session struct {
	ID             string
	GameID         string
	Engine         *engine.GameEngine
	Config         *engine.GameConfig
	ConfigID       string
	Seed           *uint64
	Source         engine.RandomSource
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Recorded is set once the finished game has been sent to the ResultStore
	Recorded bool
}
