// Package memory provides an in-process types.Coordinator.
//
// It honors the same contract as the networked coordinators (TTL leases,
// zero lock-delay, delete-on-invalidate) and adds fault injection so that
// election behavior can be tested deterministically.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wwsupercheese/tictactoe/types"
)

type lease struct {
	name    string
	ttl     time.Duration
	expires time.Time
	keys    map[string]struct{}
}

// Coordinator is an in-memory types.Coordinator. It is safe for concurrent use.
type Coordinator struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]*lease
	locks  map[string]types.LockEntry
	fault  error
}

var _ types.Coordinator = (*Coordinator)(nil)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source used for lease expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates an empty coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		now:    time.Now,
		leases: make(map[string]*lease),
		locks:  make(map[string]types.LockEntry),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetFault makes every subsequent call fail with err until cleared with nil.
// Leases keep expiring while the fault is active.
func (c *Coordinator) SetFault(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fault = err
}

// Expire invalidates a lease immediately, as if its TTL elapsed.
func (c *Coordinator) Expire(leaseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(leaseID)
}

// Put writes a key that is not bound to any lease. Used to seed tests.
func (c *Coordinator) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks[key] = types.LockEntry{Value: string(value)}
}

// CreateLease creates a lease with the given TTL.
func (c *Coordinator) CreateLease(ctx context.Context, name string, ttl time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ctx); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", types.ErrInvalidConfig
	}

	id := uuid.NewString()
	c.leases[id] = &lease{
		name:    name,
		ttl:     ttl,
		expires: c.now().Add(ttl),
		keys:    make(map[string]struct{}),
	}

	return id, nil
}

// Acquire takes key for leaseID unless another live lease holds it.
func (c *Coordinator) Acquire(ctx context.Context, key, leaseID string, value []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ctx); err != nil {
		return false, err
	}

	l, ok := c.leases[leaseID]
	if !ok {
		return false, types.ErrLeaseNotFound
	}

	if cur, exists := c.locks[key]; exists && cur.Held() && cur.LeaseID != leaseID {
		return false, nil
	}

	c.locks[key] = types.LockEntry{Value: string(value), LeaseID: leaseID}
	l.keys[key] = struct{}{}

	return true, nil
}

// Renew extends the lease by its TTL.
func (c *Coordinator) Renew(ctx context.Context, leaseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ctx); err != nil {
		return err
	}

	l, ok := c.leases[leaseID]
	if !ok {
		return types.ErrLeaseNotFound
	}
	l.expires = c.now().Add(l.ttl)

	return nil
}

// Read returns the content of key.
func (c *Coordinator) Read(ctx context.Context, key string) (types.LockEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ctx); err != nil {
		return types.LockEntry{}, false, err
	}

	entry, ok := c.locks[key]

	return entry, ok, nil
}

// Release destroys the lease and deletes the keys it holds.
func (c *Coordinator) Release(ctx context.Context, leaseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(ctx); err != nil {
		return err
	}
	c.dropLocked(leaseID)

	return nil
}

// Leases returns the number of live leases.
func (c *Coordinator) Leases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()

	return len(c.leases)
}

func (c *Coordinator) checkLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.expireLocked()
	if c.fault != nil {
		return c.fault
	}

	return nil
}

func (c *Coordinator) expireLocked() {
	now := c.now()
	for id, l := range c.leases {
		if !now.Before(l.expires) {
			c.dropLocked(id)
		}
	}
}

func (c *Coordinator) dropLocked(leaseID string) {
	l, ok := c.leases[leaseID]
	if !ok {
		return
	}
	for key := range l.keys {
		if cur, exists := c.locks[key]; exists && cur.LeaseID == leaseID {
			delete(c.locks, key)
		}
	}
	delete(c.leases, leaseID)
}
