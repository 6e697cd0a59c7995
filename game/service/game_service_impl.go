package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/wricardo/mcp-training/mergegame/game/engine"
	"github.com/wricardo/mcp-training/mergegame/game/results"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	configs   ConfigManager
	results   ResultStore
	publisher EventPublisher
	now       func() time.Time
	mu        sync.RWMutex
}

// Option configures optional service dependencies
type Option func(*gameServiceImpl)

// WithResultStore records every finished game in store
func WithResultStore(store ResultStore) Option {
	return func(s *gameServiceImpl) { s.results = store }
}

// WithEventPublisher forwards gameplay events to publisher
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *gameServiceImpl) { s.publisher = publisher }
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string, seed *uint64) (*SessionInfo, error) {
	s.mu.Lock()

	// Load configuration
	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			s.mu.Unlock()
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					configIDs := lo.Map(availableConfigs, func(c *ConfigInfo, _ int) string { return c.ConfigID })
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", config, seed)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sess.ConfigID = configName
	if sess.ConfigID == "" {
		sess.ConfigID = s.getConfigID(config.Name)
	}
	info := s.sessionInfo(sess)
	event := s.event(sess, EventNewGame, fmt.Sprintf("New %dx%d game", config.BoardSize, config.BoardSize), nil)
	s.mu.Unlock()

	log.Debug().Str("session", sess.ID).Str("game", sess.GameID).Str("config", sess.ConfigID).Msg("session created")
	s.publish(ctx, []GameEvent{event})
	return info, nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// Move executes a single move for a session. An unknown direction is an
// error; a move that changes nothing is a successful call with Changed false.
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	prevTarget := sess.Engine.TargetReached()
	changed := sess.Engine.Move(dir)
	last := sess.Engine.GetLastMove()
	state := sess.Engine.GetState()

	result := &MoveResult{
		Changed:   changed,
		Direction: dir,
		Terminal:  state.GameOver,
		GameState: state,
		Message:   state.Message,
		Events:    s.moveEvents(sess, last, prevTarget, state),
	}
	if last != nil {
		result.ScoreGained = last.ScoreGained
		result.Merges = last.Merges
		result.Spawned = last.Spawned
	}
	finished := s.finishedResult(sess, state)
	s.mu.Unlock()

	s.record(ctx, finished)
	s.publish(ctx, result.Events)
	return result, nil
}

// BulkMove executes moves in order. Rejected moves do not stop the run; an
// unknown direction or a terminal board does. At most engine.MaxBulkMoves
// moves are executed per call.
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error) {
	s.mu.Lock()
	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         []GameEvent{},
		StartScore:     sess.Engine.Score(),
	}

	// Limit moves to prevent abuse
	if len(moves) > engine.MaxBulkMoves {
		moves = moves[:engine.MaxBulkMoves]
		result.Truncated = true
		result.Limit = engine.MaxBulkMoves
	}

	for i, raw := range moves {
		if sess.Engine.IsTerminal() {
			// i is the 1-based index of the move that ended the game
			result.StopReasonCode = StopTerminal
			result.StoppedReason = "game is over"
			result.StoppedOnMove = i
			break
		}

		dir, err := engine.ParseDirection(raw)
		if err != nil {
			result.StopReasonCode = StopInvalidDirection
			result.StoppedReason = err.Error()
			result.StoppedOnMove = i + 1
			break
		}

		prevTarget := sess.Engine.TargetReached()
		changed := sess.Engine.Move(dir)
		last := sess.Engine.GetLastMove()
		state := sess.Engine.GetState()

		result.MovesExecuted++
		if changed {
			result.AcceptedMoves++
		} else {
			result.RejectedMoves++
		}
		result.Steps = append(result.Steps, StepInfo{
			Idx:         i + 1,
			Dir:         string(dir),
			Changed:     changed,
			ScoreGained: last.ScoreGained,
			ScoreAfter:  last.ScoreAfter,
			Merges:      last.Merges,
			Spawned:     last.Spawned,
		})
		result.Events = append(result.Events, s.moveEvents(sess, last, prevTarget, state)...)
	}

	state := sess.Engine.GetState()
	result.GameState = state
	result.EndScore = state.Score
	result.ScoreDelta = state.Score - result.StartScore
	result.GameOver = state.GameOver
	result.Message = state.Message
	result.PossibleMoves = lo.Map(state.PossibleMoves, func(d engine.Direction, _ int) string { return string(d) })
	finished := s.finishedResult(sess, state)
	s.mu.Unlock()

	s.record(ctx, finished)
	s.publish(ctx, result.Events)
	return result, nil
}

// NewGame replaces the session's game with a freshly constructed one
func (s *gameServiceImpl) NewGame(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	sess, err := s.sessions.Restart(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("new game for session %s: %w", sessionID, err)
	}
	info := s.sessionInfo(sess)
	event := s.event(sess, EventNewGame, fmt.Sprintf("New %dx%d game", sess.Config.BoardSize, sess.Config.BoardSize), nil)
	s.mu.Unlock()

	s.publish(ctx, []GameEvent{event})
	return info, nil
}

// GetGameState returns the current game state for a session
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState(), nil
}

// GetMoveHistory returns a page of the current game's move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	sess, err := s.getSession(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	history := sess.Engine.GetMoveHistory()
	s.mu.Unlock()

	// Set defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	total := len(history)
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := min(start+opts.Limit, total)

	moves := []engine.MoveHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			// Most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				moves = append(moves, history[i])
			}
		} else {
			moves = append(moves, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific game configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a game configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// Leaderboard returns the best finished games, best first
func (s *gameServiceImpl) Leaderboard(ctx context.Context, limit int) ([]results.Result, error) {
	if s.results == nil {
		return []results.Result{}, nil
	}
	top, err := s.results.Top(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return top, nil
}

func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		if cfg, ok := lo.Find(availableConfigs, func(c *ConfigInfo) bool { return c.Name == configName }); ok {
			return cfg.ConfigID
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		GameID:         sess.GameID,
		ConfigName:     sess.ConfigID,
		Seed:           sess.Seed,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState(),
		GameConfig:     sess.Config,
	}
}

func (s *gameServiceImpl) event(sess *Session, eventType, message string, tile *engine.Tile) GameEvent {
	return GameEvent{
		Type:      eventType,
		Message:   message,
		Timestamp: s.now(),
		SessionID: sess.ID,
		GameID:    sess.GameID,
		Tile:      tile,
		Score:     sess.Engine.Score(),
	}
}

// moveEvents describes what a single move did
func (s *gameServiceImpl) moveEvents(sess *Session, last *engine.MoveHistoryEntry, prevTarget bool, state *engine.GameState) []GameEvent {
	if last == nil {
		return nil
	}

	if !last.Changed {
		return []GameEvent{s.event(sess, EventMove, fmt.Sprintf("Nothing moves %s", last.Direction), nil)}
	}

	events := []GameEvent{
		s.event(sess, EventMove, fmt.Sprintf("Moved %s, +%d points", last.Direction, last.ScoreGained), nil),
	}
	if last.Merges > 0 {
		events = append(events, s.event(sess, EventMerge, fmt.Sprintf("%d merge(s) worth %d points", last.Merges, last.ScoreGained), nil))
	}
	if last.Spawned != nil {
		events = append(events, s.event(sess, EventSpawn,
			fmt.Sprintf("Spawned %d at (%d,%d)", last.Spawned.Value, last.Spawned.Row, last.Spawned.Col), last.Spawned))
	}
	if !prevTarget && state.TargetReached {
		events = append(events, s.event(sess, EventTargetReached, fmt.Sprintf("Reached %d!", state.TargetTile), nil))
	}
	if state.GameOver {
		events = append(events, s.event(sess, EventGameOver, state.Message, nil))
	}
	return events
}

// finishedResult returns the summary to record for a game that just ended,
// or nil. Each game is recorded at most once.
func (s *gameServiceImpl) finishedResult(sess *Session, state *engine.GameState) *results.Result {
	if s.results == nil || !state.GameOver || sess.Recorded {
		return nil
	}
	sess.Recorded = true
	return &results.Result{
		GameID:     sess.GameID,
		SessionID:  sess.ID,
		ConfigName: sess.ConfigID,
		Score:      state.Score,
		MaxTile:    state.MaxTile,
		Moves:      state.AcceptedMoves,
		FinishedAt: s.now(),
	}
}

func (s *gameServiceImpl) record(ctx context.Context, r *results.Result) {
	if r == nil {
		return
	}
	if err := s.results.Record(ctx, *r); err != nil {
		log.Warn().Err(err).Str("session", r.SessionID).Str("game", r.GameID).Msg("failed to record result")
		return
	}
	log.Info().Str("session", r.SessionID).Int("score", r.Score).Int("max_tile", r.MaxTile).Msg("game finished")
}

func (s *gameServiceImpl) publish(ctx context.Context, events []GameEvent) {
	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("session", event.SessionID).Str("type", event.Type).Msg("failed to publish event")
		}
	}
}
