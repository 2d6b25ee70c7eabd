package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wwsupercheese/tictactoe/internal/kvutil"
	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/internal/natsutil"
	"github.com/wwsupercheese/tictactoe/types"
)

// Config configures the NATS coordinator.
type Config struct {
	// BucketPrefix prefixes every bucket name.
	BucketPrefix string `yaml:"bucketPrefix"`

	// Storage selects file or memory storage for the buckets.
	Storage jetstream.StorageType `yaml:"-"`

	// Replicas is the bucket replication factor.
	Replicas int `yaml:"replicas"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BucketPrefix: "tictactoe",
		Storage:      jetstream.FileStorage,
		Replicas:     1,
	}
}

// lockRecord is the value stored under a lock key.
type lockRecord struct {
	Lease  string `json:"lease"`
	Bucket string `json:"bucket"`
	Value  string `json:"value"`
}

type leaseState struct {
	kv   jetstream.KeyValue
	mu   sync.Mutex
	keys map[string]struct{}
}

// Coordinator implements types.Coordinator on JetStream KV.
type Coordinator struct {
	js     jetstream.JetStream
	cfg    Config
	locks  jetstream.KeyValue
	logger types.Logger

	leaseBuckets *xsync.Map[time.Duration, jetstream.KeyValue]
	byName       *xsync.Map[string, jetstream.KeyValue]
	leases       *xsync.Map[string, *leaseState]
	bucketMu     sync.Mutex
}

var _ types.Coordinator = (*Coordinator)(nil)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		if cfg.BucketPrefix == "" {
			cfg.BucketPrefix = DefaultConfig().BucketPrefix
		}
		if cfg.Replicas <= 0 {
			cfg.Replicas = 1
		}
		c.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a coordinator and ensures its lock bucket exists.
//
// Parameters:
//   - ctx: Context bounding bucket creation
//   - nc: Connected NATS client
//   - opts: Optional configuration
//
// Returns:
//   - *Coordinator: Ready coordinator
//   - error: JetStream or bucket creation error
func New(ctx context.Context, nc *nats.Conn, opts ...Option) (*Coordinator, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	c := &Coordinator{
		js:           js,
		cfg:          DefaultConfig(),
		logger:       logger.NewNop(),
		leaseBuckets: xsync.NewMap[time.Duration, jetstream.KeyValue](),
		byName:       xsync.NewMap[string, jetstream.KeyValue](),
		leases:       xsync.NewMap[string, *leaseState](),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.locks, err = kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      c.cfg.BucketPrefix + "-locks",
		Description: "tictactoe leader lock keys",
		History:     1,
		Storage:     c.cfg.Storage,
		Replicas:    c.cfg.Replicas,
	})
	if err != nil {
		return nil, natsutil.Wrap("ensure lock bucket", err)
	}

	return c, nil
}

// CreateLease creates a lease key in the bucket for ttl.
func (c *Coordinator) CreateLease(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: lease ttl must be positive", types.ErrInvalidConfig)
	}

	kv, err := c.leaseBucket(ctx, ttl)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if _, err := kv.Create(ctx, id, []byte(name)); err != nil {
		return "", natsutil.Wrap("create lease", err)
	}
	c.leases.Store(id, &leaseState{kv: kv, keys: make(map[string]struct{})})

	return id, nil
}

// Acquire takes key for leaseID unless another live lease holds it.
func (c *Coordinator) Acquire(ctx context.Context, key, leaseID string, value []byte) (bool, error) {
	st, ok := c.leases.Load(leaseID)
	if !ok {
		return false, types.ErrLeaseNotFound
	}
	if alive, err := c.leaseAlive(ctx, st.kv, leaseID); err != nil {
		return false, err
	} else if !alive {
		return false, types.ErrLeaseNotFound
	}

	rec, err := json.Marshal(lockRecord{Lease: leaseID, Bucket: st.kv.Bucket(), Value: string(value)})
	if err != nil {
		return false, err
	}

	_, err = c.locks.Create(ctx, key, rec)
	if err == nil {
		st.track(key)
		return true, nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return false, natsutil.Wrap("acquire", err)
	}

	entry, cur, err := c.getLock(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		// Deleted between Create and Get; the next round retries.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if cur.Lease != leaseID {
		alive, err := c.holderAlive(ctx, cur)
		if err != nil {
			return false, err
		}
		if alive {
			return false, nil
		}
	}

	if _, err := c.locks.Update(ctx, key, rec, entry.Revision()); err != nil {
		if isWrongSequence(err) {
			return false, nil
		}

		return false, natsutil.Wrap("acquire", err)
	}
	st.track(key)

	return true, nil
}

// Renew restarts the lease TTL.
func (c *Coordinator) Renew(ctx context.Context, leaseID string) error {
	st, ok := c.leases.Load(leaseID)
	if !ok {
		return types.ErrLeaseNotFound
	}

	entry, err := st.kv.Get(ctx, leaseID)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		c.leases.Delete(leaseID)
		return types.ErrLeaseNotFound
	}
	if err != nil {
		return natsutil.Wrap("renew", err)
	}

	if _, err := st.kv.Put(ctx, leaseID, entry.Value()); err != nil {
		return natsutil.Wrap("renew", err)
	}

	return nil
}

// Read returns the content of key. Records of expired leases read as absent.
func (c *Coordinator) Read(ctx context.Context, key string) (types.LockEntry, bool, error) {
	entry, rec, err := c.getLock(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return types.LockEntry{}, false, nil
	}
	if err != nil {
		return types.LockEntry{}, false, err
	}

	alive, err := c.holderAlive(ctx, rec)
	if err != nil {
		return types.LockEntry{}, false, err
	}
	if !alive {
		// Stale record; only remove it if nobody replaced it meanwhile.
		if err := c.locks.Delete(ctx, key, jetstream.LastRevision(entry.Revision())); err != nil && !isWrongSequence(err) {
			c.logger.Debug("stale lock cleanup failed", "key", key, "error", err)
		}

		return types.LockEntry{}, false, nil
	}

	return types.LockEntry{Value: rec.Value, LeaseID: rec.Lease}, true, nil
}

// Release deletes the lease and every lock key it holds.
func (c *Coordinator) Release(ctx context.Context, leaseID string) error {
	st, ok := c.leases.LoadAndDelete(leaseID)
	if !ok {
		return nil
	}

	var errs []error
	for _, key := range st.held() {
		entry, rec, err := c.getLock(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec.Lease != leaseID {
			continue
		}
		if err := c.locks.Delete(ctx, key, jetstream.LastRevision(entry.Revision())); err != nil && !isWrongSequence(err) {
			errs = append(errs, natsutil.Wrap("release lock", err))
		}
	}

	if err := st.kv.Delete(ctx, leaseID); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		errs = append(errs, natsutil.Wrap("release lease", err))
	}

	return errors.Join(errs...)
}

func (c *Coordinator) getLock(ctx context.Context, key string) (jetstream.KeyValueEntry, lockRecord, error) {
	entry, err := c.locks.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyDeleted) {
		err = jetstream.ErrKeyNotFound
	}
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, lockRecord{}, err
		}

		return nil, lockRecord{}, natsutil.Wrap("read lock", err)
	}

	var rec lockRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, lockRecord{}, fmt.Errorf("decode lock %s: %w", key, err)
	}

	return entry, rec, nil
}

func (c *Coordinator) holderAlive(ctx context.Context, rec lockRecord) (bool, error) {
	if rec.Lease == "" || rec.Bucket == "" {
		return false, nil
	}

	kv, ok := c.byName.Load(rec.Bucket)
	if !ok {
		var err error
		kv, err = c.js.KeyValue(ctx, rec.Bucket)
		if errors.Is(err, jetstream.ErrBucketNotFound) {
			return false, nil
		}
		if err != nil {
			return false, natsutil.Wrap("open lease bucket", err)
		}
		c.byName.Store(rec.Bucket, kv)
	}

	return c.leaseAlive(ctx, kv, rec.Lease)
}

func (c *Coordinator) leaseAlive(ctx context.Context, kv jetstream.KeyValue, leaseID string) (bool, error) {
	_, err := kv.Get(ctx, leaseID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return false, nil
	default:
		return false, natsutil.Wrap("read lease", err)
	}
}

func (c *Coordinator) leaseBucket(ctx context.Context, ttl time.Duration) (jetstream.KeyValue, error) {
	if kv, ok := c.leaseBuckets.Load(ttl); ok {
		return kv, nil
	}

	c.bucketMu.Lock()
	defer c.bucketMu.Unlock()
	if kv, ok := c.leaseBuckets.Load(ttl); ok {
		return kv, nil
	}

	kv, err := kvutil.EnsureBucket(ctx, c.js, jetstream.KeyValueConfig{
		Bucket:      fmt.Sprintf("%s-leases-%dms", c.cfg.BucketPrefix, ttl.Milliseconds()),
		Description: "tictactoe leases with ttl " + ttl.String(),
		History:     1,
		TTL:         ttl,
		Storage:     c.cfg.Storage,
		Replicas:    c.cfg.Replicas,
	})
	if err != nil {
		return nil, natsutil.Wrap("ensure lease bucket", err)
	}
	c.leaseBuckets.Store(ttl, kv)
	c.byName.Store(kv.Bucket(), kv)

	return kv, nil
}

func (s *leaseState) track(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

func (s *leaseState) held() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}

	return keys
}

func isWrongSequence(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}

	return errors.Is(err, jetstream.ErrKeyExists)
}
