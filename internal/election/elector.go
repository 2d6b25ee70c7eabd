package election

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wwsupercheese/tictactoe/internal/hooks"
	"github.com/wwsupercheese/tictactoe/internal/kvutil"
	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/internal/metrics"
	"github.com/wwsupercheese/tictactoe/types"
)

// Observation is a snapshot of the election state seen by one elector.
type Observation struct {
	Role   types.Role
	Leader string
}

// IsLeader reports whether the observing elector was the leader.
func (o Observation) IsLeader() bool {
	return o.Role == types.RoleLeader
}

// Option configures an Elector.
type Option func(*Elector)

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(e *Elector) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(e *Elector) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithHooks sets lifecycle callbacks. Nil callbacks are ignored.
func WithHooks(h *types.Hooks) Option {
	return func(e *Elector) {
		e.hooks = hooks.Fill(h)
	}
}

// WithTimings overrides the election timings. Zero fields keep their defaults.
func WithTimings(t Timings) Option {
	return func(e *Elector) {
		t.SetDefaults()
		e.timings = t
	}
}

// Elector runs the election loop for one tier instance.
type Elector struct {
	coord   types.Coordinator
	tier    types.Tier
	key     string
	self    string
	timings Timings

	logger  types.Logger
	metrics types.MetricsCollector
	hooks   types.Hooks

	role    atomic.Int32
	leader  atomic.Pointer[string]
	running atomic.Bool

	subsMu sync.Mutex
	subs   map[chan Observation]struct{}

	hookWg sync.WaitGroup
}

// New creates an elector for tier advertising self as its address.
//
// Parameters:
//   - coord: Coordination client
//   - tier: Tier to elect a leader for (determines the lock key)
//   - self: Address published in the lock key when this instance leads
//   - opts: Optional configuration
//
// Returns:
//   - *Elector: Elector in the Follower role; call Run to start it
func New(coord types.Coordinator, tier types.Tier, self string, opts ...Option) *Elector {
	e := &Elector{
		coord:   coord,
		tier:    tier,
		key:     tier.LeaderKey(),
		self:    self,
		timings: DefaultTimings(),
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
		hooks:   hooks.NewNop(),
		subs:    make(map[chan Observation]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	empty := ""
	e.leader.Store(&empty)

	return e
}

// Role returns the current role.
func (e *Elector) Role() types.Role {
	return types.Role(e.role.Load())
}

// IsLeader reports whether this instance currently holds the tier lock.
func (e *Elector) IsLeader() bool {
	return e.Role() == types.RoleLeader
}

// Leader returns the address of the current leader, or "" when unknown.
func (e *Elector) Leader() string {
	return *e.leader.Load()
}

// Self returns the address this elector advertises.
func (e *Elector) Self() string {
	return e.self
}

// Tier returns the tier this elector competes in.
func (e *Elector) Tier() types.Tier {
	return e.tier
}

// Observe returns the current observation.
func (e *Elector) Observe() Observation {
	return Observation{Role: e.Role(), Leader: e.Leader()}
}

// Subscribe returns a channel receiving the latest observation after every
// change. Slow receivers only see the most recent observation. The returned
// function unsubscribes and must be called when done.
func (e *Elector) Subscribe() (<-chan Observation, func()) {
	ch := make(chan Observation, 1)

	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subsMu.Lock()
			delete(e.subs, ch)
			e.subsMu.Unlock()
		})
	}
}

// Run executes the election loop until ctx is cancelled.
//
// On return the elector is a Follower, any held lease was released
// (best effort, bounded by OperationTimeout) and no goroutine started by
// Run is left behind.
//
// Returns:
//   - error: types.ErrAlreadyStarted if Run is already executing, nil otherwise
func (e *Elector) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return types.ErrAlreadyStarted
	}
	defer e.running.Store(false)

	e.logger.Info("election started", "tier", e.tier, "key", e.key, "self", e.self)

	for ctx.Err() == nil {
		wait := e.safeRound(ctx)
		if err := kvutil.Sleep(ctx, wait); err != nil {
			break
		}
	}

	e.setRole(ctx, types.RoleFollower)
	e.setLeader(ctx, "")
	e.hookWg.Wait()
	e.logger.Info("election stopped", "tier", e.tier)

	return nil
}

// safeRound runs one round and converts a panic into an error backoff.
func (e *Elector) safeRound(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in election round", "tier", e.tier, "panic", r)
			e.setRole(ctx, types.RoleFollower)
			e.setLeader(ctx, "")
			wait = e.timings.ErrorBackoff
		}
	}()

	return e.round(ctx)
}

// round runs one create-lease/acquire cycle and returns the wait before the next.
func (e *Elector) round(ctx context.Context) time.Duration {
	opCtx, cancel := context.WithTimeout(ctx, e.timings.OperationTimeout)
	leaseID, err := e.coord.CreateLease(opCtx, e.self, e.timings.LeaseTTL)
	cancel()
	if err != nil {
		return e.fail(ctx, "create_lease", err)
	}
	defer e.release(ctx, leaseID)

	e.setRole(ctx, types.RoleCandidate)

	opCtx, cancel = context.WithTimeout(ctx, e.timings.OperationTimeout)
	acquired, err := e.coord.Acquire(opCtx, e.key, leaseID, []byte(e.self))
	cancel()
	if err != nil {
		e.setRole(ctx, types.RoleFollower)
		return e.fail(ctx, "acquire", err)
	}

	if !acquired {
		e.setRole(ctx, types.RoleFollower)

		entry, found, err := e.read(ctx)
		if err != nil {
			return e.fail(ctx, "read", err)
		}
		if found && entry.Held() {
			e.setLeader(ctx, entry.Value)
		} else {
			e.setLeader(ctx, "")
		}

		return e.timings.RetryInterval
	}

	e.logger.Info("acquired leadership", "tier", e.tier, "self", e.self)
	e.setLeader(ctx, e.self)
	e.setRole(ctx, types.RoleLeader)

	holder, err := e.lead(ctx, leaseID)
	e.setRole(ctx, types.RoleFollower)

	switch {
	case ctx.Err() != nil:
		e.setLeader(ctx, "")
		return 0
	case errors.Is(err, types.ErrLeadershipLost):
		e.logger.Warn("leadership lost", "tier", e.tier, "holder", holder)
		e.setLeader(ctx, holder)
		e.notifyError(ctx, err)

		return e.timings.RetryInterval
	default:
		return e.fail(ctx, "renew", err)
	}
}

// lead renews the lease until the key is lost, an error occurs or ctx ends.
// It returns the address of the new holder when another lease took the key.
func (e *Elector) lead(ctx context.Context, leaseID string) (string, error) {
	ticker := time.NewTicker(e.timings.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		opCtx, cancel := context.WithTimeout(ctx, e.timings.OperationTimeout)
		err := e.coord.Renew(opCtx, leaseID)
		cancel()
		if err != nil {
			if errors.Is(err, types.ErrLeaseNotFound) {
				return "", fmt.Errorf("%w: %w", types.ErrLeadershipLost, err)
			}

			return "", err
		}

		entry, found, err := e.read(ctx)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("%w: lock key vanished", types.ErrLeadershipLost)
		}
		if entry.LeaseID != leaseID {
			return entry.Value, fmt.Errorf("%w: key held by %q", types.ErrLeadershipLost, entry.Value)
		}
	}
}

func (e *Elector) read(ctx context.Context) (types.LockEntry, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.timings.OperationTimeout)
	defer cancel()

	return e.coord.Read(opCtx, e.key)
}

// release destroys the lease on a context detached from ctx's cancellation.
func (e *Elector) release(ctx context.Context, leaseID string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timings.OperationTimeout)
	defer cancel()

	if err := e.coord.Release(relCtx, leaseID); err != nil {
		e.metrics.RecordCoordinationError("release")
		e.logger.Debug("lease release failed", "tier", e.tier, "lease", leaseID, "error", err)
	}
}

// fail records a coordination error, clears the known leader and returns the backoff.
func (e *Elector) fail(ctx context.Context, op string, err error) time.Duration {
	if ctx.Err() != nil {
		return 0
	}

	e.metrics.RecordCoordinationError(op)
	e.logger.Warn("coordination error", "tier", e.tier, "op", op, "error", err)
	e.setLeader(ctx, "")
	e.notifyError(ctx, err)

	return e.timings.ErrorBackoff
}

func (e *Elector) setRole(ctx context.Context, to types.Role) {
	from := types.Role(e.role.Swap(int32(to)))
	if from == to {
		return
	}

	e.logger.Debug("role changed", "tier", e.tier, "from", from, "to", to)
	e.metrics.RecordRoleTransition(e.tier, from, to)
	e.runHook(ctx, func(hctx context.Context) error {
		return e.hooks.OnRoleChanged(hctx, from, to)
	})
	e.publish()
}

func (e *Elector) setLeader(ctx context.Context, addr string) {
	prev := e.leader.Swap(&addr)
	if *prev == addr {
		return
	}

	e.logger.Info("leader changed", "tier", e.tier, "leader", addr)
	e.metrics.RecordLeaderChange(e.tier, addr)
	e.runHook(ctx, func(hctx context.Context) error {
		return e.hooks.OnLeaderChanged(hctx, addr)
	})
	e.publish()
}

func (e *Elector) notifyError(ctx context.Context, err error) {
	e.runHook(ctx, func(hctx context.Context) error {
		return e.hooks.OnError(hctx, err)
	})
}

func (e *Elector) runHook(ctx context.Context, fn func(context.Context) error) {
	e.hookWg.Add(1)
	go func() {
		defer e.hookWg.Done()
		if err := fn(ctx); err != nil {
			e.logger.Warn("hook failed", "tier", e.tier, "error", err)
		}
	}()
}

// publish delivers the current observation to every subscriber, replacing
// an unread older one.
func (e *Elector) publish() {
	obs := e.Observe()

	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	for ch := range e.subs {
		select {
		case ch <- obs:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- obs:
		default:
		}
	}
}
