// Package redis implements the session store on Redis. Each room is a hash;
// replication uses REPLICAOF, which copies the leader's whole dataset.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/store"
	"github.com/wwsupercheese/tictactoe/types"
)

// Config configures the Redis store.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix namespaces room hashes: <prefix>game:<room>.
	KeyPrefix string `yaml:"keyPrefix"`

	// PublisherPort is the Redis port on the leader's host. Zero uses 6379.
	PublisherPort int `yaml:"publisherPort"`

	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// DefaultConfig returns the defaults used by the data tier.
func DefaultConfig() Config {
	return Config{
		Addr:          "localhost:6379",
		KeyPrefix:     "tictactoe:",
		PublisherPort: 6379,
		DialTimeout:   5 * time.Second,
	}
}

// Store is a store.Engine backed by Redis.
type Store struct {
	client *redis.Client
	cfg    Config
}

var _ store.Engine = (*Store)(nil)

// Open connects to Redis.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.PublisherPort == 0 {
		cfg.PublisherPort = def.PublisherPort
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping: %w", types.ErrBackingStoreUnavailable, err)
	}

	return &Store{client: client, cfg: cfg}, nil
}

func (s *Store) key(room string) string {
	return s.cfg.KeyPrefix + "game:" + room
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, room string) (game.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key(room)).Result()
	if err != nil {
		return game.Session{}, fmt.Errorf("load room %s: %w", room, err)
	}
	if len(fields) == 0 {
		return game.Session{}, fmt.Errorf("room %s: %w", room, types.ErrNotFound)
	}

	sess, err := decode(room, fields)
	if err != nil {
		return game.Session{}, fmt.Errorf("load room %s: %w", room, err)
	}

	return sess, nil
}

// Save implements store.Store.
func (s *Store) Save(ctx context.Context, sess game.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}

	if err := s.client.HSet(ctx, s.key(sess.Room), encode(sess)).Err(); err != nil {
		return fmt.Errorf("save room %s: %w", sess.Room, err)
	}

	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, room string) error {
	if err := s.client.Del(ctx, s.key(room)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", room, err)
	}

	return nil
}

// FindByPlayer implements store.Store by scanning the room hashes.
func (s *Store) FindByPlayer(ctx context.Context, player string) (string, bool, error) {
	if player == "" {
		return "", false, nil
	}

	prefix := s.key("")
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		seats, err := s.client.HMGet(ctx, key, "player_x", "player_o").Result()
		if err != nil {
			return "", false, fmt.Errorf("find player %s: %w", player, err)
		}
		for _, seat := range seats {
			if v, ok := seat.(string); ok && v == player {
				return key[len(prefix):], true, nil
			}
		}
	}
	if err := iter.Err(); err != nil {
		return "", false, fmt.Errorf("find player %s: %w", player, err)
	}

	return "", false, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.client.Close()
}

// EnsurePublication implements store.Replicator. A Redis primary always
// accepts replicas, so promotion is all that is needed.
func (s *Store) EnsurePublication(ctx context.Context) error {
	return s.DropSubscription(ctx)
}

// DropSubscription implements store.Replicator.
func (s *Store) DropSubscription(ctx context.Context) error {
	if err := s.client.Do(ctx, "REPLICAOF", "NO", "ONE").Err(); err != nil {
		return fmt.Errorf("%w: replicaof no one: %w", types.ErrReplicationFailed, err)
	}

	return nil
}

// Truncate implements store.Replicator. Only keys under KeyPrefix are removed.
func (s *Store) Truncate(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.key("")+"*", 100).Iterator()

	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.client.Unlink(ctx, batch...).Err()
		batch = batch[:0]

		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return fmt.Errorf("%w: truncate: %w", types.ErrReplicationFailed, err)
			}
		}
	}
	if err := errors.Join(iter.Err(), flush()); err != nil {
		return fmt.Errorf("%w: truncate: %w", types.ErrReplicationFailed, err)
	}

	return nil
}

// Subscribe implements store.Replicator.
func (s *Store) Subscribe(ctx context.Context, leader string) error {
	host, err := store.LeaderHost(leader)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrReplicationFailed, err)
	}

	port := strconv.Itoa(s.cfg.PublisherPort)
	if err := s.client.Do(ctx, "REPLICAOF", host, port).Err(); err != nil {
		return fmt.Errorf("%w: replicaof %s %s: %w", types.ErrReplicationFailed, host, port, err)
	}

	return nil
}

func encode(sess game.Session) map[string]any {
	return map[string]any{
		"cells":          sess.Cells,
		"small_winners":  sess.SmallWinners,
		"active_board_x": sess.ActiveBoardX,
		"active_board_y": sess.ActiveBoardY,
		"player_x":       sess.PlayerX,
		"player_o":       sess.PlayerO,
		"is_x_turn":      strconv.FormatBool(sess.XTurn),
		"status":         string(sess.Status),
	}
}

func decode(room string, f map[string]string) (game.Session, error) {
	ax, errX := strconv.Atoi(f["active_board_x"])
	ay, errY := strconv.Atoi(f["active_board_y"])
	turn, errT := strconv.ParseBool(f["is_x_turn"])
	if err := errors.Join(errX, errY, errT); err != nil {
		return game.Session{}, fmt.Errorf("malformed record: %w", err)
	}

	sess := game.Session{
		Room:         room,
		Cells:        f["cells"],
		SmallWinners: f["small_winners"],
		ActiveBoardX: ax,
		ActiveBoardY: ay,
		PlayerX:      f["player_x"],
		PlayerO:      f["player_o"],
		XTurn:        turn,
		Status:       game.Status(f["status"]),
	}

	return sess, sess.Validate()
}
