package tictactoe

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/multierr"

	"github.com/wwsupercheese/tictactoe/coordination/consul"
	"github.com/wwsupercheese/tictactoe/coordination/etcd"
	"github.com/wwsupercheese/tictactoe/coordination/memory"
	"github.com/wwsupercheese/tictactoe/coordination/natskv"
	"github.com/wwsupercheese/tictactoe/store"
	storemem "github.com/wwsupercheese/tictactoe/store/memory"
	"github.com/wwsupercheese/tictactoe/store/postgres"
	"github.com/wwsupercheese/tictactoe/store/redis"
)

// backends owns the clients built from Config. Stop closes them in
// reverse order of creation.
type backends struct {
	closers []func() error
}

func (b *backends) onClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

func (b *backends) close() error {
	var errs error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, b.closers[i]())
	}
	b.closers = nil

	return errs
}

// openCoordination builds the coordinator selected by cfg.Coordination and,
// when registration is enabled, the backend's registrar.
func (b *backends) openCoordination(ctx context.Context, cfg *Config, logger Logger) (Coordinator, Registrar, error) {
	cc := cfg.Coordination
	register := cfg.Registration.Enabled

	switch cc.Backend {
	case BackendMemory:
		if register {
			logger.Warn("memory coordination backend has no registry, registration skipped")
		}

		return memory.New(), nil, nil

	case BackendNATS:
		nc, err := nats.Connect(cc.NATS.URL,
			nats.Name(cfg.Tier.ServiceName()),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		b.onClose(func() error {
			nc.Close()
			return nil
		})

		natsCfg := natskv.DefaultConfig()
		natsCfg.BucketPrefix = cc.NATS.BucketPrefix
		natsCfg.Replicas = cc.NATS.Replicas

		coord, err := natskv.New(ctx, nc, natskv.WithConfig(natsCfg), natskv.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create nats coordinator: %w", err)
		}
		if !register {
			return coord, nil, nil
		}

		reg, err := natskv.NewRegistrar(ctx, nc, cc.NATS.BucketPrefix, cfg.Registration.CheckInterval, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create nats registrar: %w", err)
		}
		b.onClose(reg.Close)

		return coord, reg, nil

	case BackendConsul:
		client, err := consul.NewClient(ctx, cc.Consul)
		if err != nil {
			return nil, nil, err
		}
		if !register {
			return consul.New(client), nil, nil
		}

		return consul.New(client), consul.NewRegistrar(client), nil

	case BackendEtcd:
		client, err := etcd.NewClient(ctx, cc.Etcd)
		if err != nil {
			return nil, nil, err
		}
		b.onClose(client.Close)
		if register {
			logger.Warn("etcd coordination backend has no registry, registration skipped")
		}

		return etcd.New(client), nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown coordination backend %q", ErrInvalidConfig, cc.Backend)
	}
}

// openStore opens the session store selected by cfg.Storage.
func (b *backends) openStore(ctx context.Context, cfg *Config) (store.Engine, error) {
	var (
		engine store.Engine
		err    error
	)

	switch cfg.Storage.Backend {
	case StorageMemory:
		engine = storemem.New()
	case StoragePostgres:
		engine, err = postgres.Open(ctx, cfg.Storage.Postgres)
	case StorageRedis:
		engine, err = redis.Open(ctx, cfg.Storage.Redis)
	default:
		err = fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	b.onClose(engine.Close)

	return engine, nil
}

// Connect builds the coordinator selected by cfg.Coordination for a
// client that only reads leader keys. The returned function closes the
// clients Connect created.
func Connect(ctx context.Context, cfg *Config, logger Logger) (Coordinator, func() error, error) {
	clientCfg := *cfg
	clientCfg.Registration.Enabled = false

	var b backends
	coord, _, err := b.openCoordination(ctx, &clientCfg, logger)
	if err != nil {
		return nil, nil, multierr.Append(err, b.close())
	}

	return coord, b.close, nil
}
