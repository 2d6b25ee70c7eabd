package tictactoe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wwsupercheese/tictactoe/internal/logger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, TierGame, cfg.Tier)
	require.Equal(t, ":5001", cfg.Listen)
	require.Equal(t, BackendConsul, cfg.Coordination.Backend)
	require.Equal(t, StoragePostgres, cfg.Storage.Backend)
	require.Equal(t, 10*time.Second, cfg.Election.LeaseTTL)
	require.Equal(t, time.Second, cfg.Election.RetryInterval)
	require.Equal(t, time.Second, cfg.Election.RenewInterval)
	require.Equal(t, 2*time.Second, cfg.Election.ErrorBackoff)
	require.Equal(t, 2*time.Second, cfg.Discovery.PollInterval)
	require.Equal(t, 3, cfg.Discovery.MaxAttempts)
	require.Equal(t, 1500*time.Millisecond, cfg.Discovery.RetryDelay)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		def := DefaultConfig()
		require.Equal(t, def.Tier, cfg.Tier)
		require.Equal(t, def.Listen, cfg.Listen)
		require.Equal(t, def.Election, cfg.Election)
		require.Equal(t, def.Discovery, cfg.Discovery)
		require.Equal(t, def.Coordination.NATS, cfg.Coordination.NATS)
		require.Equal(t, def.Coordination.Etcd.Endpoints, cfg.Coordination.Etcd.Endpoints)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			Tier:             TierData,
			Listen:           "127.0.0.1:6001",
			OperationTimeout: time.Second,
			ShutdownTimeout:  time.Minute,
		}
		cfg.Election.LeaseTTL = 30 * time.Second
		cfg.Discovery.MaxAttempts = 5
		SetDefaults(&cfg)

		require.Equal(t, TierData, cfg.Tier)
		require.Equal(t, "127.0.0.1:6001", cfg.Listen)
		require.Equal(t, 30*time.Second, cfg.Election.LeaseTTL)
		require.Equal(t, 5, cfg.Discovery.MaxAttempts)
		require.Equal(t, time.Minute, cfg.ShutdownTimeout)
	})

	t.Run("operation timeout flows into election and discovery", func(t *testing.T) {
		cfg := Config{OperationTimeout: 700 * time.Millisecond}
		SetDefaults(&cfg)

		require.Equal(t, 700*time.Millisecond, cfg.Election.OperationTimeout)
		require.Equal(t, 700*time.Millisecond, cfg.Discovery.OperationTimeout)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Tier = TierData
		cfg.Storage.Postgres.DSN = "postgres://app@db:5432/tictactoe"

		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"unknown tier", func(c *Config) { c.Tier = "chess" }, false},
		{"bad listen", func(c *Config) { c.Listen = "5001" }, false},
		{"advertise without scheme", func(c *Config) { c.Advertise = "host:5001" }, false},
		{"advertise url", func(c *Config) { c.Advertise = "http://host:5001" }, true},
		{"unknown backend", func(c *Config) { c.Coordination.Backend = "zookeeper" }, false},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "mysql" }, false},
		{"postgres without dsn", func(c *Config) { c.Storage.Postgres.DSN = "" }, false},
		{"game tier ignores storage", func(c *Config) { c.Tier = TierGame; c.Storage.Backend = "mysql" }, true},
		{"renew not below ttl", func(c *Config) { c.Election.RenewInterval = c.Election.LeaseTTL }, false},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	cfg := TestConfig()
	cfg.Tier = TierData

	require.NotPanics(t, func() {
		cfg.ValidateWithWarnings(logger.NewTest(t))
	})
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	SetDefaults(&cfg)

	require.NoError(t, cfg.Validate())
	require.Equal(t, BackendMemory, cfg.Coordination.Backend)
	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Less(t, cfg.Election.LeaseTTL, time.Second)
}

func TestParseConfig(t *testing.T) {
	t.Run("yaml with durations", func(t *testing.T) {
		data := []byte(`
tier: tictactoe-orm
listen: ":6001"
advertise: "http://db1:6001"
coordination:
  backend: nats
  nats:
    url: nats://nats:4222
storage:
  backend: redis
  redis:
    addr: redis1:6379
election:
  leaseTTL: 15s
  renewInterval: 3s
discovery:
  retryDelay: 500ms
registration:
  enabled: true
  checkInterval: 5s
`)
		cfg, err := ParseConfig(data, TierGame)
		require.NoError(t, err)

		require.Equal(t, TierData, cfg.Tier)
		require.Equal(t, "http://db1:6001", cfg.Advertise)
		require.Equal(t, BackendNATS, cfg.Coordination.Backend)
		require.Equal(t, "nats://nats:4222", cfg.Coordination.NATS.URL)
		require.Equal(t, "tictactoe", cfg.Coordination.NATS.BucketPrefix)
		require.Equal(t, StorageRedis, cfg.Storage.Backend)
		require.Equal(t, "redis1:6379", cfg.Storage.Redis.Addr)
		require.Equal(t, 15*time.Second, cfg.Election.LeaseTTL)
		require.Equal(t, 3*time.Second, cfg.Election.RenewInterval)
		require.Equal(t, time.Second, cfg.Election.RetryInterval)
		require.Equal(t, 500*time.Millisecond, cfg.Discovery.RetryDelay)
		require.True(t, cfg.Registration.Enabled)
		require.Equal(t, 5*time.Second, cfg.Registration.CheckInterval)
	})

	t.Run("round trip", func(t *testing.T) {
		in := TestConfig()
		in.Advertise = "http://127.0.0.1:7001"

		data, err := yaml.Marshal(in)
		require.NoError(t, err)

		out, err := ParseConfig(data, TierData)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseConfig([]byte("tier: [unclosed"), TierGame)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := ParseConfig([]byte("tier: chess\n"), TierGame)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":5002\"\ncoordination:\n  backend: memory\nstorage:\n  backend: memory\n"), 0o600))

	cfg, err := LoadConfig(path, TierGame)
	require.NoError(t, err)
	require.Equal(t, TierGame, cfg.Tier)
	require.Equal(t, ":5002", cfg.Listen)

	cfg, err = LoadConfig(path, TierData)
	require.NoError(t, err)
	require.Equal(t, TierData, cfg.Tier)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), TierGame)
	require.Error(t, err)
}

func TestConfig_Registration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tier = TierData

	reg, err := cfg.registration("http://db1:6001")
	require.NoError(t, err)
	require.Equal(t, Registration{
		Tier:          TierData,
		ID:            "tictactoe-orm-service-6001",
		Host:          "db1",
		Port:          6001,
		CheckInterval: 10 * time.Second,
	}, reg)

	cfg.Registration.ID = "orm-a"
	reg, err = cfg.registration("http://db1:6001")
	require.NoError(t, err)
	require.Equal(t, "orm-a", reg.ID)

	_, err = cfg.registration("http://db1")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
