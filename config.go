package tictactoe

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wwsupercheese/tictactoe/coordination/consul"
	"github.com/wwsupercheese/tictactoe/coordination/etcd"
	"github.com/wwsupercheese/tictactoe/discovery"
	"github.com/wwsupercheese/tictactoe/internal/election"
	"github.com/wwsupercheese/tictactoe/store/postgres"
	"github.com/wwsupercheese/tictactoe/store/redis"
)

// Coordination backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
	BackendConsul = "consul"
	BackendEtcd   = "etcd"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// NATSConfig configures the JetStream KV coordinator.
type NATSConfig struct {
	// URL of the NATS server. Default: nats://127.0.0.1:4222
	URL string `yaml:"url"`

	// BucketPrefix prefixes the lease, lock and registration buckets.
	BucketPrefix string `yaml:"bucketPrefix"`

	// Replicas is the bucket replication factor.
	Replicas int `yaml:"replicas"`
}

// CoordinationConfig selects and configures the coordination service.
type CoordinationConfig struct {
	// Backend is one of memory, nats, consul or etcd.
	//
	// memory is process-local and only useful when every tier instance runs
	// in the same process (tests, demos).
	Backend string `yaml:"backend"`

	NATS   NATSConfig    `yaml:"nats"`
	Consul consul.Config `yaml:"consul"`
	Etcd   etcd.Config   `yaml:"etcd"`
}

// StorageConfig selects and configures the data tier's session store.
// Ignored by the game tier.
type StorageConfig struct {
	// Backend is one of memory, postgres or redis.
	Backend string `yaml:"backend"`

	Postgres postgres.Config `yaml:"postgres"`
	Redis    redis.Config    `yaml:"redis"`
}

// RegistrationConfig controls service registration.
//
// Registration uses the coordination backend's registry (Consul catalog or
// a NATS KV bucket). The memory and etcd backends have none; with those,
// registration requires WithRegistrar.
type RegistrationConfig struct {
	Enabled bool `yaml:"enabled"`

	// ID of the instance. Default: <service>-<port>
	ID string `yaml:"id"`

	// CheckInterval is the TCP health-check interval.
	CheckInterval time.Duration `yaml:"checkInterval"`
}

// Config is the configuration of a tier instance.
//
// All duration fields accept standard Go duration strings like "2s", "1m".
type Config struct {
	// Tier is tictactoe-service (game tier) or tictactoe-orm (data tier).
	Tier Tier `yaml:"tier"`

	// Listen is the HTTP listen address, e.g. ":5001".
	Listen string `yaml:"listen"`

	// Advertise is the URL published as leader value and used by peers to
	// reach this instance. Default: derived from the bound listen address.
	Advertise string `yaml:"advertise"`

	Coordination CoordinationConfig `yaml:"coordination"`
	Storage      StorageConfig      `yaml:"storage"`

	// Election holds the lease and retry timings of the tier election.
	Election election.Timings `yaml:"election"`

	// Discovery configures the game tier's follower of the data tier.
	Discovery discovery.Config `yaml:"discovery"`

	// ReplicationRetry is the data tier's wait before re-running a failed
	// replication pass.
	ReplicationRetry time.Duration `yaml:"replicationRetry"`

	// OperationTimeout bounds single coordination and storage calls.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	Registration RegistrationConfig `yaml:"registration"`
}

// DefaultConfig returns a Config with production defaults for the game tier.
func DefaultConfig() Config {
	return Config{
		Tier:   TierGame,
		Listen: ":5001",
		Coordination: CoordinationConfig{
			Backend: BackendConsul,
			NATS: NATSConfig{
				URL:          "nats://127.0.0.1:4222",
				BucketPrefix: "tictactoe",
				Replicas:     1,
			},
			Consul: consul.Config{Address: "127.0.0.1:8500"},
			Etcd: etcd.Config{
				Endpoints:   []string{"127.0.0.1:2379"},
				DialTimeout: 5 * time.Second,
			},
		},
		Storage: StorageConfig{
			Backend:  StoragePostgres,
			Postgres: postgres.DefaultConfig(),
			Redis:    redis.DefaultConfig(),
		},
		Election:         election.DefaultTimings(),
		Discovery:        discovery.DefaultConfig(),
		ReplicationRetry: 2 * time.Second,
		OperationTimeout: 3 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		Registration: RegistrationConfig{
			CheckInterval: 10 * time.Second,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
func SetDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Tier == "" {
		cfg.Tier = def.Tier
	}
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.Coordination.Backend == "" {
		cfg.Coordination.Backend = def.Coordination.Backend
	}
	if cfg.Coordination.NATS.URL == "" {
		cfg.Coordination.NATS.URL = def.Coordination.NATS.URL
	}
	if cfg.Coordination.NATS.BucketPrefix == "" {
		cfg.Coordination.NATS.BucketPrefix = def.Coordination.NATS.BucketPrefix
	}
	if cfg.Coordination.NATS.Replicas == 0 {
		cfg.Coordination.NATS.Replicas = def.Coordination.NATS.Replicas
	}
	if cfg.Coordination.Consul.Address == "" {
		cfg.Coordination.Consul.Address = def.Coordination.Consul.Address
	}
	if len(cfg.Coordination.Etcd.Endpoints) == 0 {
		cfg.Coordination.Etcd.Endpoints = def.Coordination.Etcd.Endpoints
	}
	if cfg.Coordination.Etcd.DialTimeout == 0 {
		cfg.Coordination.Etcd.DialTimeout = def.Coordination.Etcd.DialTimeout
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	// Store-specific fields are defaulted by postgres.Open and redis.Open.

	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = def.OperationTimeout
	}
	// The election and discovery loops share the instance-wide call bound.
	if cfg.Election.OperationTimeout == 0 {
		cfg.Election.OperationTimeout = cfg.OperationTimeout
	}
	if cfg.Discovery.OperationTimeout == 0 {
		cfg.Discovery.OperationTimeout = cfg.OperationTimeout
	}
	cfg.Election.SetDefaults()
	cfg.Discovery.SetDefaults()

	if cfg.ReplicationRetry == 0 {
		cfg.ReplicationRetry = def.ReplicationRetry
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.Registration.CheckInterval == 0 {
		cfg.Registration.CheckInterval = def.Registration.CheckInterval
	}
}

// Validate checks configuration constraints.
//
// Hard Validation Rules:
//   - Tier is a known tier
//   - Listen is a host:port address
//   - Advertise, when set, is an absolute http(s) URL
//   - Coordination and storage backends are known
//   - Election timings satisfy RenewInterval < LeaseTTL
//   - Postgres DSN is set when the data tier uses postgres
func (cfg *Config) Validate() error {
	if !cfg.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidConfig, cfg.Tier)
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("%w: listen address %q: %w", ErrInvalidConfig, cfg.Listen, err)
	}
	if cfg.Advertise != "" {
		u, err := url.Parse(cfg.Advertise)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: advertise %q must be an http URL", ErrInvalidConfig, cfg.Advertise)
		}
	}

	switch cfg.Coordination.Backend {
	case BackendMemory, BackendNATS, BackendConsul, BackendEtcd:
	default:
		return fmt.Errorf("%w: unknown coordination backend %q", ErrInvalidConfig, cfg.Coordination.Backend)
	}

	if cfg.Tier == TierData {
		switch cfg.Storage.Backend {
		case StorageMemory, StorageRedis:
		case StoragePostgres:
			if cfg.Storage.Postgres.DSN == "" {
				return fmt.Errorf("%w: storage.postgres.dsn is required", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, cfg.Storage.Backend)
		}
	}

	if err := cfg.Election.Validate(); err != nil {
		return err
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdownTimeout must be > 0, got %v", ErrInvalidConfig, cfg.ShutdownTimeout)
	}

	return nil
}

// ValidateWithWarnings logs warnings for values that are legal but unwise.
//
// This is called after Validate() in NewManager() to provide operator guidance.
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Election.RenewInterval*3 > cfg.Election.LeaseTTL {
		logger.Warn(
			"RenewInterval leaves little room for missed renewals",
			"renewInterval", cfg.Election.RenewInterval,
			"leaseTTL", cfg.Election.LeaseTTL,
			"recommended", cfg.Election.LeaseTTL/3,
		)
	}

	if cfg.Coordination.Backend == BackendMemory {
		logger.Warn("memory coordination backend is process-local; tiers in other processes will not see this instance")
	}

	if cfg.Tier == TierData && cfg.Storage.Backend == StorageMemory {
		logger.Warn("memory storage backend does not persist sessions and cannot replicate across processes")
	}

	if budget := time.Duration(cfg.Discovery.MaxAttempts-1) * cfg.Discovery.RetryDelay; budget > cfg.Election.LeaseTTL {
		logger.Warn(
			"discovery retry budget exceeds the election lease TTL",
			"retryBudget", budget,
			"leaseTTL", cfg.Election.LeaseTTL,
		)
	}
}

// TestConfig returns a configuration with fast timings for tests.
//
// It uses the memory coordination and storage backends and listens on a
// random loopback port. Use DefaultConfig() for production deployments.
//
// Example:
//
//	cfg := tictactoe.TestConfig()
//	cfg.Tier = tictactoe.TierData
//	mgr, err := tictactoe.NewManager(&cfg, tictactoe.WithCoordinator(coord))
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Listen = "127.0.0.1:0"
	cfg.Coordination.Backend = BackendMemory
	cfg.Storage.Backend = StorageMemory
	cfg.Election = election.Timings{
		LeaseTTL:         500 * time.Millisecond,
		RetryInterval:    20 * time.Millisecond,
		RenewInterval:    50 * time.Millisecond,
		ErrorBackoff:     50 * time.Millisecond,
		OperationTimeout: 500 * time.Millisecond,
	}
	cfg.Discovery = discovery.Config{
		PollInterval:     20 * time.Millisecond,
		MaxAttempts:      3,
		RetryDelay:       20 * time.Millisecond,
		OperationTimeout: 500 * time.Millisecond,
	}
	cfg.ReplicationRetry = 20 * time.Millisecond
	cfg.OperationTimeout = 500 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second

	return cfg
}

// LoadConfig reads a YAML configuration file, applies defaults and
// validates it. tier is used when the file does not name one.
func LoadConfig(path string, tier Tier) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	return ParseConfig(data, tier)
}

// ParseConfig parses YAML configuration, applies defaults and validates it.
// tier is used when the document does not name one.
func ParseConfig(data []byte, tier Tier) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Tier == "" {
		cfg.Tier = tier
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// registration builds the registry entry for an instance reachable at advertise.
func (cfg *Config) registration(advertise string) (Registration, error) {
	u, err := url.Parse(advertise)
	if err != nil {
		return Registration{}, fmt.Errorf("%w: advertise %q: %w", ErrInvalidConfig, advertise, err)
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return Registration{}, fmt.Errorf("%w: advertise %q has no port", ErrInvalidConfig, advertise)
	}

	id := cfg.Registration.ID
	if id == "" {
		id = fmt.Sprintf("%s-%d", cfg.Tier.ServiceName(), port)
	}

	return Registration{
		Tier:          cfg.Tier,
		ID:            id,
		Host:          u.Hostname(),
		Port:          port,
		CheckInterval: cfg.Registration.CheckInterval,
	}, nil
}
