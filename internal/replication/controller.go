// Package replication reconfigures the data tier's storage engine whenever
// the data-tier leadership changes: the leader publishes, followers
// subscribe to the leader.
package replication

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wwsupercheese/tictactoe/internal/election"
	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/internal/metrics"
	"github.com/wwsupercheese/tictactoe/store"
	"github.com/wwsupercheese/tictactoe/types"
)

// Pass actions reported to metrics.
const (
	ActionPublish   = "publish"
	ActionSubscribe = "subscribe"
)

// DefaultRetryInterval is the delay before a failed pass is retried when
// no new observation arrives.
const DefaultRetryInterval = 2 * time.Second

// Topology is the replication role last applied to the engine.
type Topology struct {
	// Publishing is true once the engine was promoted to publisher.
	Publishing bool

	// Upstream is the leader address the engine subscribes to.
	Upstream string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithRetryInterval sets the retry delay of failed passes.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// Controller applies leadership observations to a store.Replicator.
//
// Passes never overlap. Observations that arrive while a pass runs are
// coalesced: only the latest is kept and exactly one more pass follows.
type Controller struct {
	repl          store.Replicator
	logger        types.Logger
	metrics       types.MetricsCollector
	retryInterval time.Duration

	latest  chan election.Observation
	applied atomic.Pointer[Topology]
	failed  bool
}

// New creates a controller for repl.
func New(repl store.Replicator, opts ...Option) *Controller {
	c := &Controller{
		repl:          repl,
		logger:        logger.NewNop(),
		metrics:       metrics.NewNop(),
		retryInterval: DefaultRetryInterval,
		latest:        make(chan election.Observation, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.applied.Store(&Topology{})

	return c
}

// Notify queues obs for the next pass, replacing any queued observation.
// It never blocks.
func (c *Controller) Notify(obs election.Observation) {
	for {
		select {
		case c.latest <- obs:
			return
		default:
		}
		select {
		case <-c.latest:
		default:
		}
	}
}

// Run applies observations until ctx is cancelled. Observations come from
// updates and from Notify; self is the address this instance advertises.
//
// Run must not be called concurrently with itself.
func (c *Controller) Run(ctx context.Context, self string, updates <-chan election.Observation) error {
	ticker := time.NewTicker(c.retryInterval)
	defer ticker.Stop()

	var current election.Observation
	var have bool

	for {
		select {
		case <-ctx.Done():
			return nil
		case obs, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			c.Notify(obs)
			continue
		case obs := <-c.latest:
			current, have = obs, true
		case <-ticker.C:
			if !have || !c.failed {
				continue
			}
		}

		c.safePass(ctx, self, current)
	}
}

// Applied returns the topology applied by the last successful pass.
func (c *Controller) Applied() Topology {
	return *c.applied.Load()
}

func (c *Controller) safePass(ctx context.Context, self string, obs election.Observation) {
	defer func() {
		if r := recover(); r != nil {
			c.failed = true
			c.logger.Error("panic in replication pass", "panic", r)
		}
	}()

	c.pass(ctx, self, obs)
}

// pass reconciles the engine with one observation.
func (c *Controller) pass(ctx context.Context, self string, obs election.Observation) {
	applied := c.Applied()

	switch {
	case obs.IsLeader():
		if applied.Publishing && !c.failed {
			return
		}
		c.run(ctx, ActionPublish, obs.Leader, func() error {
			if err := c.repl.DropSubscription(ctx); err != nil {
				return err
			}

			return c.repl.EnsurePublication(ctx)
		}, Topology{Publishing: true})

	case obs.Leader == "" || obs.Leader == self:
		// Leader unknown: keep serving the last replica.
		c.logger.Debug("no leader known, keeping replica", "upstream", applied.Upstream)

	default:
		if applied.Upstream == obs.Leader && !c.failed {
			return
		}
		c.run(ctx, ActionSubscribe, obs.Leader, func() error {
			if err := c.repl.DropSubscription(ctx); err != nil {
				return err
			}
			if err := c.repl.Truncate(ctx); err != nil {
				return err
			}

			return c.repl.Subscribe(ctx, obs.Leader)
		}, Topology{Upstream: obs.Leader})
	}
}

func (c *Controller) run(ctx context.Context, action, leader string, fn func() error, next Topology) {
	start := time.Now()
	err := fn()
	c.metrics.RecordReplicationPass(action, time.Since(start).Seconds(), err == nil)

	if err != nil {
		c.failed = true
		// The engine state is unknown after a partial pass.
		c.applied.Store(&Topology{})
		if ctx.Err() == nil {
			c.logger.Error("replication pass failed", "action", action, "leader", leader,
				"error", fmt.Errorf("%w: %w", types.ErrReplicationFailed, err))
		}

		return
	}

	c.failed = false
	c.applied.Store(&next)
	c.logger.Info("replication configured", "action", action, "leader", leader)
}
