// Package discovery follows the leader of a tier.
//
// A Follower polls the tier's lock key through a types.Coordinator, dials
// the advertised leader whenever it changes and routes calls to the
// current connection. Callers never address a leader directly.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/wwsupercheese/tictactoe/internal/kvutil"
	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/internal/metrics"
	"github.com/wwsupercheese/tictactoe/types"
)

// Status messages.
const (
	StatusWaiting     = "waiting for leader"
	StatusUnavailable = "coordinator unavailable"
	StatusDialFailed  = "leader unreachable"
	StatusConnected   = "connected"
)

// Config holds the polling and retry parameters.
type Config struct {
	// PollInterval is the delay between two reads of the lock key.
	PollInterval time.Duration `yaml:"pollInterval"`

	// MaxAttempts bounds the attempts of Do on a syncing leader.
	MaxAttempts int `yaml:"maxAttempts"`

	// RetryDelay separates two attempts of Do.
	RetryDelay time.Duration `yaml:"retryDelay"`

	// OperationTimeout bounds each coordinator read and each dial.
	OperationTimeout time.Duration `yaml:"operationTimeout"`
}

// DefaultConfig returns the defaults: poll every 2s, 3 attempts 1.5s apart.
func DefaultConfig() Config {
	return Config{
		PollInterval:     2 * time.Second,
		MaxAttempts:      3,
		RetryDelay:       1500 * time.Millisecond,
		OperationTimeout: 3 * time.Second,
	}
}

// SetDefaults fills zero fields with DefaultConfig values.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
}

// Dialer creates a client for the leader advertised at addr. Clients that
// implement io.Closer are closed when the leader changes.
type Dialer[C any] func(ctx context.Context, addr string) (C, error)

// Status is an observable snapshot of a follower.
type Status struct {
	State   types.ConnState
	Leader  string
	Message string
}

type conn[C any] struct {
	addr   string
	client C
}

// Option configures a Follower.
type Option func(*settings)

type settings struct {
	logger  types.Logger
	metrics types.MetricsCollector
	config  Config
}

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithConfig overrides the polling and retry parameters.
func WithConfig(c Config) Option {
	return func(s *settings) {
		c.SetDefaults()
		s.config = c
	}
}

// Follower tracks the leader of one tier and holds a client to it.
type Follower[C any] struct {
	coord types.Coordinator
	tier  types.Tier
	dial  Dialer[C]
	settings

	mu      sync.Mutex // serializes connection swaps
	current atomic.Pointer[conn[C]]
	status  atomic.Pointer[Status]
	running atomic.Bool
	kick    chan struct{}

	subsMu sync.Mutex
	subs   map[chan Status]struct{}
}

// New creates a follower for tier. Call Run to start polling.
func New[C any](coord types.Coordinator, tier types.Tier, dial Dialer[C], opts ...Option) *Follower[C] {
	s := settings{
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	f := &Follower[C]{
		coord:    coord,
		tier:     tier,
		dial:     dial,
		settings: s,
		kick:     make(chan struct{}, 1),
		subs:     make(map[chan Status]struct{}),
	}
	f.status.Store(&Status{State: types.Disconnected, Message: StatusWaiting})

	return f
}

// State returns the connection state.
func (f *Follower[C]) State() types.ConnState {
	return f.status.Load().State
}

// Status returns the latest status snapshot.
func (f *Follower[C]) Status() Status {
	return *f.status.Load()
}

// Leader returns the address of the connected leader, or "".
func (f *Follower[C]) Leader() string {
	if c := f.current.Load(); c != nil {
		return c.addr
	}

	return ""
}

// Subscribe returns a channel receiving the latest status after every
// change. The returned function unsubscribes.
func (f *Follower[C]) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	f.subsMu.Lock()
	f.subs[ch] = struct{}{}
	f.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.subsMu.Lock()
			delete(f.subs, ch)
			f.subsMu.Unlock()
		})
	}
}

// Run polls the lock key until ctx is cancelled, then closes the client.
func (f *Follower[C]) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return types.ErrAlreadyStarted
	}
	defer f.running.Store(false)

	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		f.safePoll(ctx)

		select {
		case <-ctx.Done():
			f.disconnect(StatusWaiting)
			return nil
		case <-ticker.C:
		case <-f.kick:
		}
	}
}

// Refresh requests an immediate poll.
func (f *Follower[C]) Refresh() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Do runs fn with the current leader's client.
//
// Errors matching types.ErrBackingStoreUnavailable are retried up to
// MaxAttempts times, RetryDelay apart; the final error combines every
// attempt and matches types.ErrRetriesExhausted. Domain errors (see
// types.IsDomainError) and errors caused by ctx ending are returned
// unchanged. Any other error drops the connection and triggers rediscovery.
//
// Returns types.ErrNotConnected when no leader is connected.
func (f *Follower[C]) Do(ctx context.Context, fn func(ctx context.Context, client C) error) error {
	var errs error

	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			f.metrics.RecordRetry(f.tier)
			if err := kvutil.Sleep(ctx, f.config.RetryDelay); err != nil {
				return multierr.Append(errs, err)
			}
		}

		c := f.current.Load()
		if c == nil {
			if errs == nil {
				return fmt.Errorf("%w: %s", types.ErrNotConnected, f.Status().Message)
			}
			errs = multierr.Append(errs, fmt.Errorf("attempt %d: %w", attempt, types.ErrNotConnected))

			continue
		}

		err := fn(ctx, c.client)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, types.ErrBackingStoreUnavailable):
			f.logger.Debug("leader syncing", "tier", f.tier, "leader", c.addr, "attempt", attempt)
			errs = multierr.Append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		case types.IsDomainError(err), ctx.Err() != nil:
			return err
		default:
			f.invalidate(c, err)
			return err
		}
	}

	f.metrics.RecordRetriesExhausted(f.tier)

	return multierr.Append(errs, types.ErrRetriesExhausted)
}

// Client returns the current leader's client.
func (f *Follower[C]) Client() (C, bool) {
	if c := f.current.Load(); c != nil {
		return c.client, true
	}

	var zero C
	return zero, false
}

func (f *Follower[C]) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("panic in discovery poll", "tier", f.tier, "panic", r)
			f.disconnect(StatusUnavailable)
		}
	}()

	f.poll(ctx)
}

func (f *Follower[C]) poll(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, f.config.OperationTimeout)
	entry, found, err := f.coord.Read(opCtx, f.tier.LeaderKey())
	cancel()

	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		f.logger.Warn("leader lookup failed", "tier", f.tier, "error", err)
		f.disconnect(StatusUnavailable)
		return
	case !found || !entry.Held() || entry.Value == "":
		f.disconnect(StatusWaiting)
		return
	}

	if c := f.current.Load(); c != nil && c.addr == entry.Value {
		return
	}

	f.connect(ctx, entry.Value)
}

func (f *Follower[C]) connect(ctx context.Context, addr string) {
	dialCtx, cancel := context.WithTimeout(ctx, f.config.OperationTimeout)
	client, err := f.dial(dialCtx, addr)
	cancel()
	if err != nil {
		f.logger.Warn("dial leader failed", "tier", f.tier, "leader", addr, "error", err)
		f.disconnect(StatusDialFailed)
		return
	}

	f.mu.Lock()
	old := f.current.Swap(&conn[C]{addr: addr, client: client})
	f.mu.Unlock()
	closeClient(old)

	f.metrics.RecordReconnect(f.tier)
	f.logger.Info("connected to leader", "tier", f.tier, "leader", addr)
	f.setStatus(Status{State: types.Connected, Leader: addr, Message: StatusConnected})
}

// invalidate drops c if it is still the current connection.
func (f *Follower[C]) invalidate(c *conn[C], err error) {
	f.mu.Lock()
	swapped := f.current.CompareAndSwap(c, nil)
	f.mu.Unlock()
	if !swapped {
		return
	}

	closeClient(c)
	f.logger.Warn("leader connection lost", "tier", f.tier, "leader", c.addr, "error", err)
	f.setStatus(Status{State: types.Disconnected, Message: StatusWaiting})
	f.Refresh()
}

func (f *Follower[C]) disconnect(message string) {
	f.mu.Lock()
	old := f.current.Swap(nil)
	f.mu.Unlock()
	closeClient(old)

	if old != nil {
		f.logger.Info("leader lost", "tier", f.tier, "leader", old.addr, "reason", message)
	}
	f.setStatus(Status{State: types.Disconnected, Message: message})
}

func (f *Follower[C]) setStatus(s Status) {
	if prev := f.status.Swap(&s); *prev == s {
		return
	}

	f.subsMu.Lock()
	defer f.subsMu.Unlock()

	for ch := range f.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func closeClient[C any](c *conn[C]) {
	if c == nil {
		return
	}
	if closer, ok := any(c.client).(io.Closer); ok {
		_ = closer.Close()
	}
}
