package election

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wwsupercheese/tictactoe/coordination/memory"
	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastTimings() Timings {
	return Timings{
		LeaseTTL:         300 * time.Millisecond,
		RetryInterval:    20 * time.Millisecond,
		RenewInterval:    20 * time.Millisecond,
		ErrorBackoff:     40 * time.Millisecond,
		OperationTimeout: 100 * time.Millisecond,
	}
}

// switchable wraps a coordinator and lets a test cut one participant off.
type switchable struct {
	types.Coordinator
	down atomic.Bool
}

var errCutOff = errors.New("cut off")

func (s *switchable) CreateLease(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if s.down.Load() {
		return "", errCutOff
	}
	return s.Coordinator.CreateLease(ctx, name, ttl)
}

func (s *switchable) Acquire(ctx context.Context, key, leaseID string, value []byte) (bool, error) {
	if s.down.Load() {
		return false, errCutOff
	}
	return s.Coordinator.Acquire(ctx, key, leaseID, value)
}

func (s *switchable) Renew(ctx context.Context, leaseID string) error {
	if s.down.Load() {
		return errCutOff
	}
	return s.Coordinator.Renew(ctx, leaseID)
}

func (s *switchable) Read(ctx context.Context, key string) (types.LockEntry, bool, error) {
	if s.down.Load() {
		return types.LockEntry{}, false, errCutOff
	}
	return s.Coordinator.Read(ctx, key)
}

func (s *switchable) Release(ctx context.Context, leaseID string) error {
	if s.down.Load() {
		return errCutOff
	}
	return s.Coordinator.Release(ctx, leaseID)
}

type runner struct {
	e      *Elector
	cancel context.CancelFunc
	done   chan struct{}
}

func start(t *testing.T, coord types.Coordinator, self string, opts ...Option) *runner {
	t.Helper()

	opts = append([]Option{WithTimings(fastTimings()), WithLogger(logger.NewTest(t))}, opts...)
	e := New(coord, types.TierData, self, opts...)
	ctx, cancel := context.WithCancel(t.Context())
	r := &runner{e: e, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		_ = e.Run(ctx)
	}()

	t.Cleanup(r.stop)

	return r
}

func (r *runner) stop() {
	r.cancel()
	<-r.done
}

func leaders(rs ...*runner) []*runner {
	var out []*runner
	for _, r := range rs {
		if r.e.IsLeader() {
			out = append(out, r)
		}
	}

	return out
}

func TestElector_SingleInstanceBecomesLeader(t *testing.T) {
	coord := memory.New()
	r := start(t, coord, "http://a:5002")

	require.Eventually(t, r.e.IsLeader, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "http://a:5002", r.e.Leader())

	entry, found, err := coord.Read(t.Context(), types.TierData.LeaderKey())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "http://a:5002", entry.Value)
}

func TestElector_FollowersLearnLeader(t *testing.T) {
	coord := memory.New()
	a := start(t, coord, "http://a:5002")
	require.Eventually(t, a.e.IsLeader, 2*time.Second, 5*time.Millisecond)

	b := start(t, coord, "http://b:5002")
	c := start(t, coord, "http://c:5002")

	require.Eventually(t, func() bool {
		return b.e.Leader() == "http://a:5002" && c.e.Leader() == "http://a:5002"
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, types.RoleFollower, b.e.Role())
	require.Equal(t, types.RoleFollower, c.e.Role())
	require.Len(t, leaders(a, b, c), 1)
}

func TestElector_MutualExclusion(t *testing.T) {
	coord := memory.New()

	rs := make([]*runner, 0, 5)
	for _, addr := range []string{"http://a", "http://b", "http://c", "http://d", "http://e"} {
		rs = append(rs, start(t, coord, addr))
	}

	require.Eventually(t, func() bool { return len(leaders(rs...)) == 1 }, 2*time.Second, 5*time.Millisecond)

	// Leadership is stable while the leader keeps renewing.
	deadline := time.Now().Add(500 * time.Millisecond)
	leader := leaders(rs...)[0]
	for time.Now().Before(deadline) {
		got := leaders(rs...)
		require.Len(t, got, 1)
		require.Same(t, leader, got[0])
		time.Sleep(10 * time.Millisecond)
	}

	for _, r := range rs {
		if r != leader {
			require.Equal(t, leader.e.Self(), r.e.Leader())
		}
	}
}

func TestElector_FailoverWhenLeaderStopsRenewing(t *testing.T) {
	coord := memory.New()
	tm := fastTimings()

	cutA := &switchable{Coordinator: coord}
	a := start(t, cutA, "http://a:5002")
	require.Eventually(t, a.e.IsLeader, 2*time.Second, 5*time.Millisecond)

	b := start(t, coord, "http://b:5002")
	c := start(t, coord, "http://c:5002")
	require.Eventually(t, func() bool { return b.e.Leader() == "http://a:5002" }, 2*time.Second, 5*time.Millisecond)

	cutA.down.Store(true)
	cutAt := time.Now()

	require.Eventually(t, func() bool {
		ls := leaders(b, c)
		return len(ls) == 1 && !a.e.IsLeader()
	}, tm.LeaseTTL+10*tm.RetryInterval+time.Second, 5*time.Millisecond)
	require.Less(t, time.Since(cutAt), tm.LeaseTTL+tm.RetryInterval+time.Second)

	newLeader := leaders(b, c)[0]
	require.Empty(t, a.e.Leader(), "isolated instance knows no leader")

	// Reconnected instance follows the new leader.
	cutA.down.Store(false)
	require.Eventually(t, func() bool { return a.e.Leader() == newLeader.e.Self() }, 2*time.Second, 5*time.Millisecond)
	require.Len(t, leaders(a, b, c), 1)
}

func TestElector_LostKeyDemotes(t *testing.T) {
	coord := memory.New()
	a := start(t, coord, "http://a:5002")
	require.Eventually(t, a.e.IsLeader, 2*time.Second, 5*time.Millisecond)

	entry, _, err := coord.Read(t.Context(), types.TierData.LeaderKey())
	require.NoError(t, err)

	// Invalidate the lease behind the leader's back; it reacquires with a new one.
	coord.Expire(entry.LeaseID)

	require.Eventually(t, func() bool {
		cur, found, err := coord.Read(t.Context(), types.TierData.LeaderKey())
		return err == nil && found && cur.LeaseID != entry.LeaseID && a.e.IsLeader()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestElector_CoordinatorOutage(t *testing.T) {
	coord := memory.New()
	coord.SetFault(types.ErrConnectivity)

	var errs atomic.Int32
	r := start(t, coord, "http://a:5002", WithHooks(&types.Hooks{
		OnError: func(context.Context, error) error {
			errs.Add(1)
			return nil
		},
	}))

	require.Eventually(t, func() bool { return errs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, types.RoleFollower, r.e.Role())
	require.Empty(t, r.e.Leader())

	coord.SetFault(nil)
	require.Eventually(t, r.e.IsLeader, 2*time.Second, 5*time.Millisecond)
}

func TestElector_ShutdownReleasesLease(t *testing.T) {
	coord := memory.New()
	a := start(t, coord, "http://a:5002")
	require.Eventually(t, a.e.IsLeader, 2*time.Second, 5*time.Millisecond)

	a.stop()

	require.Equal(t, types.RoleFollower, a.e.Role())
	require.Empty(t, a.e.Leader())
	require.Zero(t, coord.Leases())

	_, found, err := coord.Read(t.Context(), types.TierData.LeaderKey())
	require.NoError(t, err)
	require.False(t, found)

	// A new instance takes over without waiting for a TTL.
	b := start(t, coord, "http://b:5002")
	require.Eventually(t, b.e.IsLeader, fastTimings().LeaseTTL, 5*time.Millisecond)
}

func TestElector_RunTwice(t *testing.T) {
	coord := memory.New()
	a := start(t, coord, "http://a:5002")
	require.Eventually(t, a.e.IsLeader, 2*time.Second, 5*time.Millisecond)

	require.ErrorIs(t, a.e.Run(t.Context()), types.ErrAlreadyStarted)
}

func TestElector_Subscribe(t *testing.T) {
	coord := memory.New()
	e := New(coord, types.TierGame, "http://a:5001", WithTimings(fastTimings()))

	ch, unsubscribe := e.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(t.Context())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = e.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		select {
		case obs := <-ch:
			return obs.IsLeader() && obs.Leader == "http://a:5001"
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()

	var last Observation
	require.Eventually(t, func() bool {
		select {
		case last = <-ch:
		default:
		}
		return last.Role == types.RoleFollower
	}, time.Second, 5*time.Millisecond)
}

func TestElector_RoleHooks(t *testing.T) {
	coord := memory.New()

	var mu sync.Mutex
	var transitions []types.Role
	r := start(t, coord, "http://a:5002", WithHooks(&types.Hooks{
		OnRoleChanged: func(_ context.Context, _, to types.Role) error {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, to)
			return nil
		},
	}))
	require.Eventually(t, r.e.IsLeader, 2*time.Second, 5*time.Millisecond)
	r.stop()

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, transitions, types.RoleCandidate)
	require.Contains(t, transitions, types.RoleLeader)
	require.Contains(t, transitions, types.RoleFollower)
}

func TestTimings_Validate(t *testing.T) {
	tm := DefaultTimings()
	require.NoError(t, tm.Validate())

	tm.RenewInterval = tm.LeaseTTL
	require.ErrorIs(t, tm.Validate(), types.ErrInvalidConfig)

	var zero Timings
	require.ErrorIs(t, zero.Validate(), types.ErrInvalidConfig)
	zero.SetDefaults()
	require.Equal(t, DefaultTimings(), zero)
}
