package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/internal/metrics"
	"github.com/wwsupercheese/tictactoe/types"
)

// DataTier is the data-tier capability the game service depends on.
//
// Load returns types.ErrNotFound for a missing room. Implementations
// return an error matching types.ErrBackingStoreUnavailable while no
// data-tier leader is reachable.
type DataTier interface {
	CheckSession(ctx context.Context, player string) (room string, found bool, err error)
	Load(ctx context.Context, room string) (game.Session, error)
	Save(ctx context.Context, s game.Session) error
	Delete(ctx context.Context, room string) error
	ExitSeat(ctx context.Context, room, player string) (bool, error)
}

// Option configures a service.
type Option func(*options)

type options struct {
	logger  types.Logger
	metrics types.MetricsCollector
	gate    LeaderGate
}

func defaultOptions() options {
	return options{
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
		gate:    alwaysLeader{},
	}
}

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLeaderGate restricts the service to the tier leader.
func WithLeaderGate(g LeaderGate) Option {
	return func(o *options) {
		if g != nil {
			o.gate = g
		}
	}
}

// GameService implements the game-tier operations.
type GameService struct {
	data  DataTier
	locks *roomLocks
	options
}

// NewGameService creates a game service on top of data.
func NewGameService(data DataTier, opts ...Option) *GameService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &GameService{data: data, locks: newRoomLocks(), options: o}
}

// CheckSession returns the room player is seated in.
func (s *GameService) CheckSession(ctx context.Context, player string) (string, bool, error) {
	if err := s.admit(); err != nil {
		return "", false, err
	}
	if player == "" {
		return "", false, fmt.Errorf("%w: empty player id", types.ErrInvalidRequest)
	}

	return s.data.CheckSession(ctx, player)
}

// CreateOrJoin creates room with nickname as X, or seats nickname in the
// first open seat of an existing room. A player already seated gets the
// room back unchanged.
//
// Returns:
//   - types.ErrRoomNotFound: joinOnly and the room does not exist
//   - types.ErrRoomFull: both seats are taken by other players
//   - types.ErrInvalidRequest: empty nickname or room
func (s *GameService) CreateOrJoin(ctx context.Context, nickname, room string, joinOnly bool) (game.Session, error) {
	if err := s.admit(); err != nil {
		return game.Session{}, err
	}
	if nickname == "" || room == "" {
		return game.Session{}, fmt.Errorf("%w: nickname and room are required", types.ErrInvalidRequest)
	}

	defer s.locks.lock(room)()

	sess, err := s.data.Load(ctx, room)
	switch {
	case errors.Is(err, types.ErrNotFound):
		if joinOnly {
			return game.Session{}, fmt.Errorf("%w: %s", types.ErrRoomNotFound, room)
		}
		sess = game.NewSession(room, nickname)
		s.logger.Info("room created", "room", room, "player", nickname)
	case err != nil:
		return game.Session{}, err
	case sess.HasPlayer(nickname):
		return sess, nil
	default:
		var ok bool
		if sess, ok = sess.Join(nickname); !ok {
			return game.Session{}, fmt.Errorf("%w: %s", types.ErrRoomFull, room)
		}
		s.logger.Info("player joined", "room", room, "player", nickname)
	}

	if err := s.data.Save(ctx, sess); err != nil {
		return game.Session{}, err
	}

	return sess, nil
}

// MakeMove plays move for player. An invalid move leaves the room unchanged
// and returns the current state without error.
func (s *GameService) MakeMove(ctx context.Context, room, player string, move game.Move) (game.Session, error) {
	if err := s.admit(); err != nil {
		return game.Session{}, err
	}

	defer s.locks.lock(room)()

	sess, err := s.data.Load(ctx, room)
	if errors.Is(err, types.ErrNotFound) {
		return game.Session{}, fmt.Errorf("%w: %s", types.ErrRoomError, room)
	}
	if err != nil {
		return game.Session{}, err
	}

	next, ok := game.TryMove(sess, move, player)
	s.metrics.RecordMove(ok)
	if !ok {
		s.logger.Debug("move rejected", "room", room, "player", player, "move", move)
		return sess, nil
	}

	if err := s.data.Save(ctx, next); err != nil {
		return game.Session{}, err
	}

	return next, nil
}

// GetState returns the room's session.
func (s *GameService) GetState(ctx context.Context, room, _ string) (game.Session, error) {
	if err := s.admit(); err != nil {
		return game.Session{}, err
	}

	sess, err := s.data.Load(ctx, room)
	if errors.Is(err, types.ErrNotFound) {
		return game.Session{}, fmt.Errorf("%w: %s", types.ErrNotFound, room)
	}

	return sess, err
}

// Reset discards the board of room and keeps its players.
func (s *GameService) Reset(ctx context.Context, room, player string) (game.Session, error) {
	if err := s.admit(); err != nil {
		return game.Session{}, err
	}

	defer s.locks.lock(room)()

	sess, err := s.data.Load(ctx, room)
	if err != nil {
		return game.Session{}, err
	}

	fresh := game.Reset(sess)
	if err := s.data.Save(ctx, fresh); err != nil {
		return game.Session{}, err
	}
	s.logger.Info("room reset", "room", room, "player", player)

	return fresh, nil
}

// ExitSeat vacates player's seat. The room is deleted once both seats are open.
func (s *GameService) ExitSeat(ctx context.Context, room, player string) (bool, error) {
	if err := s.admit(); err != nil {
		return false, err
	}

	defer s.locks.lock(room)()

	return s.data.ExitSeat(ctx, room, player)
}

func (s *GameService) admit() error {
	if !s.gate.IsLeader() {
		return errNotLeader
	}

	return nil
}
