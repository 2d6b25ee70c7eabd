// Package postgres implements the session store on PostgreSQL and switches
// the database between logical-replication publisher and subscriber.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/store"
	"github.com/wwsupercheese/tictactoe/types"
)

// SQLSTATE duplicate_object, returned by CREATE PUBLICATION for an existing name.
const codeDuplicateObject = "42710"

// Config configures the PostgreSQL store.
type Config struct {
	// DSN of the local database.
	DSN string `yaml:"dsn"`

	// PublisherPort is the port of the leader's database. Zero uses the local port.
	PublisherPort uint16 `yaml:"publisherPort"`

	// Publication and Subscription names.
	Publication  string `yaml:"publication"`
	Subscription string `yaml:"subscription"`

	MaxConns    int32         `yaml:"maxConns"`
	PingTimeout time.Duration `yaml:"pingTimeout"`
}

// DefaultConfig returns the defaults used by the data tier.
func DefaultConfig() Config {
	return Config{
		Publication:  "tictactoe_pub",
		Subscription: "tictactoe_sub",
		MaxConns:     10,
		PingTimeout:  2 * time.Second,
	}
}

// Store is a store.Engine backed by the games table.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
	conn *pgx.ConnConfig
}

var _ store.Engine = (*Store)(nil)

// Open connects to the database and creates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", types.ErrInvalidConfig)
	}

	def := DefaultConfig()
	if cfg.Publication == "" {
		cfg.Publication = def.Publication
	}
	if cfg.Subscription == "" {
		cfg.Subscription = def.Subscription
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = def.MaxConns
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres dsn: %w", types.ErrInvalidConfig, err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	if cfg.PublisherPort == 0 {
		cfg.PublisherPort = poolCfg.ConnConfig.Port
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: postgres ping: %w", types.ErrBackingStoreUnavailable, err)
	}

	s := &Store{pool: pool, cfg: cfg, conn: poolCfg.ConnConfig}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS games (
	game_id        VARCHAR(50) PRIMARY KEY,
	cells          VARCHAR(81),
	small_winners  VARCHAR(9),
	active_board_x SMALLINT,
	active_board_y SMALLINT,
	player_x       VARCHAR(100),
	player_o       VARCHAR(100),
	is_x_turn      BOOLEAN,
	status         VARCHAR(20)
)`)
	if err != nil {
		return fmt.Errorf("create games table: %w", err)
	}

	return nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, room string) (game.Session, error) {
	sess := game.Session{Room: room}

	var status string
	err := s.pool.QueryRow(ctx, `
SELECT cells, small_winners, active_board_x, active_board_y, player_x, player_o, is_x_turn, status
FROM games WHERE game_id = $1`, room).Scan(
		&sess.Cells, &sess.SmallWinners, &sess.ActiveBoardX, &sess.ActiveBoardY,
		&sess.PlayerX, &sess.PlayerO, &sess.XTurn, &status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Session{}, fmt.Errorf("room %s: %w", room, types.ErrNotFound)
	}
	if err != nil {
		return game.Session{}, fmt.Errorf("load room %s: %w", room, err)
	}
	sess.Status = game.Status(status)

	return sess, nil
}

// Save implements store.Store.
func (s *Store) Save(ctx context.Context, sess game.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}

	_, err := s.pool.Exec(ctx, `
INSERT INTO games (game_id, cells, small_winners, active_board_x, active_board_y, player_x, player_o, is_x_turn, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (game_id) DO UPDATE SET
	cells = EXCLUDED.cells,
	small_winners = EXCLUDED.small_winners,
	active_board_x = EXCLUDED.active_board_x,
	active_board_y = EXCLUDED.active_board_y,
	player_x = EXCLUDED.player_x,
	player_o = EXCLUDED.player_o,
	is_x_turn = EXCLUDED.is_x_turn,
	status = EXCLUDED.status`,
		sess.Room, sess.Cells, sess.SmallWinners, sess.ActiveBoardX, sess.ActiveBoardY,
		sess.PlayerX, sess.PlayerO, sess.XTurn, string(sess.Status),
	)
	if err != nil {
		return fmt.Errorf("save room %s: %w", sess.Room, err)
	}

	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, room string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM games WHERE game_id = $1`, room); err != nil {
		return fmt.Errorf("delete room %s: %w", room, err)
	}

	return nil
}

// FindByPlayer implements store.Store.
func (s *Store) FindByPlayer(ctx context.Context, player string) (string, bool, error) {
	if player == "" {
		return "", false, nil
	}

	var room string
	err := s.pool.QueryRow(ctx,
		`SELECT game_id FROM games WHERE player_x = $1 OR player_o = $1 LIMIT 1`, player).Scan(&room)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find player %s: %w", player, err)
	}

	return room, true, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.pool.Close()

	return nil
}

// EnsurePublication implements store.Replicator.
func (s *Store) EnsurePublication(ctx context.Context) error {
	if err := s.DropSubscription(ctx); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, "CREATE PUBLICATION "+s.ident(s.cfg.Publication)+" FOR ALL TABLES")
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateObject {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: create publication: %w", types.ErrReplicationFailed, err)
	}

	return nil
}

// DropSubscription implements store.Replicator.
func (s *Store) DropSubscription(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DROP SUBSCRIPTION IF EXISTS "+s.ident(s.cfg.Subscription)); err != nil {
		return fmt.Errorf("%w: drop subscription: %w", types.ErrReplicationFailed, err)
	}

	return nil
}

// Truncate implements store.Replicator.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE TABLE games"); err != nil {
		return fmt.Errorf("%w: truncate: %w", types.ErrReplicationFailed, err)
	}

	return nil
}

// Subscribe implements store.Replicator. The publisher is the leader's
// host on PublisherPort, with the local credentials and database name.
func (s *Store) Subscribe(ctx context.Context, leader string) error {
	host, err := store.LeaderHost(leader)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrReplicationFailed, err)
	}

	conninfo := Conninfo(map[string]string{
		"host":     host,
		"port":     strconv.Itoa(int(s.cfg.PublisherPort)),
		"user":     s.conn.User,
		"password": s.conn.Password,
		"dbname":   s.conn.Database,
	})

	sql := fmt.Sprintf("CREATE SUBSCRIPTION %s CONNECTION %s PUBLICATION %s WITH (copy_data = true)",
		s.ident(s.cfg.Subscription), literal(conninfo), s.ident(s.cfg.Publication))
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("%w: create subscription to %s: %w", types.ErrReplicationFailed, host, err)
	}

	return nil
}

func (s *Store) ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Conninfo renders libpq key/value connection parameters in a stable order.
// Empty values are omitted.
func Conninfo(params map[string]string) string {
	keys := []string{"host", "port", "user", "password", "dbname"}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := params[k]
		if !ok || v == "" {
			continue
		}
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		parts = append(parts, k+"='"+v+"'")
	}

	return strings.Join(parts, " ")
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
