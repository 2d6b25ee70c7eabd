package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wwsupercheese/tictactoe/internal/heartbeat"
	"github.com/wwsupercheese/tictactoe/internal/kvutil"
	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/internal/natsutil"
	"github.com/wwsupercheese/tictactoe/types"
)

const defaultCheckInterval = 2 * time.Second

type instanceRecord struct {
	ID      string `json:"id"`
	Service string `json:"service"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// Registrar implements types.Registrar on a JetStream KV bucket.
type Registrar struct {
	kv       jetstream.KeyValue
	logger   types.Logger
	interval time.Duration

	mu    sync.Mutex // serializes Register
	beats *xsync.Map[string, *heartbeat.Beat]
}

var _ types.Registrar = (*Registrar)(nil)

// NewRegistrar creates a registrar whose entries expire after three missed
// check intervals.
//
// Parameters:
//   - ctx: Context bounding bucket creation
//   - nc: Connected NATS client
//   - bucketPrefix: Bucket name prefix ("tictactoe" when empty)
//   - checkInterval: Heartbeat interval (2s when zero)
//   - l: Logger (nil for no logging)
func NewRegistrar(ctx context.Context, nc *nats.Conn, bucketPrefix string, checkInterval time.Duration, l types.Logger) (*Registrar, error) {
	if bucketPrefix == "" {
		bucketPrefix = DefaultConfig().BucketPrefix
	}
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}
	if l == nil {
		l = logger.NewNop()
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucketPrefix + "-registry",
		Description: "tictactoe service instances",
		History:     1,
		TTL:         3 * checkInterval,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		return nil, natsutil.Wrap("ensure registry bucket", err)
	}

	return &Registrar{
		kv:       kv,
		logger:   l,
		interval: checkInterval,
		beats:    xsync.NewMap[string, *heartbeat.Beat](),
	}, nil
}

// Register publishes the instance and keeps it alive until Deregister.
func (r *Registrar) Register(ctx context.Context, reg types.Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("%w: registration id is required", types.ErrInvalidConfig)
	}

	payload, err := json.Marshal(instanceRecord{
		ID:      reg.ID,
		Service: reg.Tier.ServiceName(),
		Host:    reg.Host,
		Port:    reg.Port,
	})
	if err != nil {
		return err
	}

	key := registryKey(reg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.beats.Load(key); ok {
		return fmt.Errorf("%s: %w", key, types.ErrAlreadyStarted)
	}
	b, err := heartbeat.Start(ctx, r.kv, key, payload, r.interval, r.logger)
	if err != nil {
		return natsutil.Wrap("register", err)
	}
	r.beats.Store(key, b)

	r.logger.Info("service registered", "service", reg.Tier.ServiceName(), "id", reg.ID)

	return nil
}

// Deregister stops the heartbeat and deletes the entry.
func (r *Registrar) Deregister(ctx context.Context, reg types.Registration) error {
	b, ok := r.beats.LoadAndDelete(registryKey(reg))
	if !ok {
		return nil
	}
	if err := b.Stop(ctx); err != nil {
		return natsutil.Wrap("deregister", err)
	}

	r.logger.Info("service deregistered", "service", reg.Tier.ServiceName(), "id", reg.ID)

	return nil
}

// Instances lists the live registrations of tier.
func (r *Registrar) Instances(ctx context.Context, tier types.Tier) ([]types.Registration, error) {
	lister, err := r.kv.ListKeys(ctx)
	if err != nil {
		return nil, natsutil.Wrap("list instances", err)
	}
	defer func() { _ = lister.Stop() }()

	prefix := tier.ServiceName() + "."
	var out []types.Registration
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := r.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var rec instanceRecord
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			continue
		}
		out = append(out, types.Registration{
			Tier:          tier,
			ID:            rec.ID,
			Host:          rec.Host,
			Port:          rec.Port,
			CheckInterval: r.interval,
		})
	}

	return out, nil
}

// Close deregisters every instance registered through r.
func (r *Registrar) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	var errs []error
	r.beats.Range(func(key string, b *heartbeat.Beat) bool {
		r.beats.Delete(key)
		if err := b.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		return true
	})

	return errors.Join(errs...)
}

func registryKey(reg types.Registration) string {
	return reg.Tier.ServiceName() + "." + reg.ID
}
