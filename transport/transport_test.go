package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/wwsupercheese/tictactoe/coordination/memory"
	"github.com/wwsupercheese/tictactoe/discovery"
	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/internal/service"
	storemem "github.com/wwsupercheese/tictactoe/store/memory"
	"github.com/wwsupercheese/tictactoe/types"
)

type gate struct{ leader atomic.Bool }

func (g *gate) IsLeader() bool { return g.leader.Load() }

type fakeRole struct{}

func (fakeRole) Tier() types.Tier { return types.TierGame }
func (fakeRole) Role() types.Role { return types.RoleLeader }
func (fakeRole) Leader() string   { return "http://a:5001" }
func (fakeRole) Self() string     { return "http://a:5001" }

func serve(t *testing.T, s *Server) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(NewHTTPServer("", s.Handler()).Handler)
	t.Cleanup(ts.Close)

	return ts
}

func newDataTier(t *testing.T, g service.LeaderGate) (*httptest.Server, *storemem.Store) {
	t.Helper()

	st := storemem.New()
	t.Cleanup(func() { _ = st.Close() })

	return serve(t, NewDataServer(service.NewDataService(st, service.WithLeaderGate(g)))), st
}

func TestGameServer_EndToEnd(t *testing.T) {
	st := storemem.New()
	t.Cleanup(func() { _ = st.Close() })

	reg := prometheus.NewRegistry()
	svc := service.NewGameService(service.NewDataService(st))
	ts := serve(t, NewGameServer(svc,
		WithRoleSource(fakeRole{}),
		WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	))

	hc := NewHTTPClient(5 * time.Second)
	t.Cleanup(hc.CloseIdleConnections)
	c := NewGameClient(ts.URL, hc)
	ctx := t.Context()

	require.NoError(t, c.Health(ctx))

	s, err := c.CreateOrJoin(ctx, "alice", "1234", false)
	require.NoError(t, err)
	require.Equal(t, "alice", s.PlayerX)

	_, err = c.CreateOrJoin(ctx, "bob", "1234", true)
	require.NoError(t, err)

	_, err = c.CreateOrJoin(ctx, "carol", "1234", false)
	require.ErrorIs(t, err, types.ErrRoomFull)

	_, err = c.CreateOrJoin(ctx, "dave", "9999", true)
	require.ErrorIs(t, err, types.ErrRoomNotFound)

	s, err = c.MakeMove(ctx, "1234", "alice", game.Move{BoardX: 1, BoardY: 1, CellX: 0, CellY: 0})
	require.NoError(t, err)
	require.Equal(t, "bob", s.CurrentPlayer())

	got, err := c.GetState(ctx, "1234", "bob")
	require.NoError(t, err)
	require.Equal(t, s, got)

	_, err = c.MakeMove(ctx, "nope", "alice", game.Move{})
	require.ErrorIs(t, err, types.ErrRoomError)
	_, err = c.GetState(ctx, "nope", "alice")
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = c.Reset(ctx, "nope", "alice")
	require.ErrorIs(t, err, types.ErrNotFound)

	room, found, err := c.CheckSession(ctx, "bob")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1234", room)

	s, err = c.Reset(ctx, "1234", "alice")
	require.NoError(t, err)
	require.NotContains(t, s.Cells, "X")

	ok, err := c.ExitSeat(ctx, "1234", "alice")
	require.NoError(t, err)
	require.True(t, ok)

	info, err := c.Leader(ctx)
	require.NoError(t, err)
	require.Equal(t, LeaderInfo{Tier: types.TierGame, Role: "Leader", Leader: "http://a:5001", Self: "http://a:5001"}, info)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGameServer_ErrorBodies(t *testing.T) {
	g := &gate{}
	st := storemem.New()
	t.Cleanup(func() { _ = st.Close() })
	ts := serve(t, NewGameServer(service.NewGameService(service.NewDataService(st), service.WithLeaderGate(g))))

	get := func(t *testing.T, path string) (int, ErrorBody) {
		t.Helper()

		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()

		var eb ErrorBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&eb))

		return resp.StatusCode, eb
	}

	status, eb := get(t, "/v1/rooms/1234?player=alice")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, types.CodeSystemSyncing, eb.Code)

	g.leader.Store(true)
	status, eb = get(t, "/v1/rooms/1234?player=alice")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, types.CodeNotFound, eb.Code)

	resp, err := ts.Client().Post(ts.URL+"/v1/rooms/1234/join", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDataServer_RoundTrip(t *testing.T) {
	g := &gate{}
	ts, _ := newDataTier(t, g)
	c := NewDataClient(ts.URL, nil)
	ctx := t.Context()

	sess := game.NewSession("1234", "alice")
	err := c.Save(ctx, sess)
	require.ErrorIs(t, err, types.ErrBackingStoreUnavailable)

	g.leader.Store(true)
	require.NoError(t, c.Save(ctx, sess))

	got, err := c.Load(ctx, "1234")
	require.NoError(t, err)
	require.Equal(t, sess, got)

	room, found, err := c.CheckSession(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1234", room)

	ok, err := c.ExitSeat(ctx, "1234", "alice")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Load(ctx, "1234")
	require.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, c.Delete(ctx, "1234"))
	require.ErrorIs(t, c.Save(ctx, game.Session{Room: "1234"}), types.ErrInvalidRequest)
}

func TestRemoteData_FollowsLeader(t *testing.T) {
	g := &gate{}
	g.leader.Store(true)
	ts, st := newDataTier(t, g)

	coord := memory.New()
	f := discovery.New(coord, types.TierData, DialData, discovery.WithConfig(discovery.Config{
		PollInterval:     10 * time.Millisecond,
		MaxAttempts:      3,
		RetryDelay:       5 * time.Millisecond,
		OperationTimeout: time.Second,
	}))
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	remote := NewRemoteData(f)

	err := remote.Save(t.Context(), game.NewSession("1", "alice"))
	require.ErrorIs(t, err, types.ErrBackingStoreUnavailable)
	require.ErrorIs(t, err, types.ErrNotConnected)

	lease, err := coord.CreateLease(t.Context(), "data", time.Minute)
	require.NoError(t, err)
	_, err = coord.Acquire(t.Context(), types.TierData.LeaderKey(), lease, []byte(ts.URL))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.State() == types.Connected }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, remote.Save(t.Context(), game.NewSession("1", "alice")))
	require.Equal(t, 1, st.Len())

	// The leader keeps its lock but steps down from serving.
	g.leader.Store(false)
	err = remote.Save(t.Context(), game.NewSession("2", "bob"))
	require.ErrorIs(t, err, types.ErrBackingStoreUnavailable)
	require.ErrorIs(t, err, types.ErrRetriesExhausted)

	require.NoError(t, coord.Release(t.Context(), lease))
	require.Eventually(t, func() bool { return f.State() == types.Disconnected }, 2*time.Second, 5*time.Millisecond)

	err = remote.Delete(t.Context(), "1")
	require.ErrorIs(t, err, types.ErrBackingStoreUnavailable)
	require.ErrorIs(t, err, types.ErrNotConnected)
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	_, err := DialGame(t.Context(), addr)
	require.ErrorIs(t, err, types.ErrUnreachable)
}

func TestGameView(t *testing.T) {
	s := game.NewSession("1234", "alice")
	s, _ = s.Join("bob")
	s, _ = game.TryMove(s, game.Move{BoardX: 1, BoardY: 1}, "alice")

	v := NewGameView(s)
	require.Equal(t, "bob", v.CurrentPlayer)
	require.Equal(t, s.Fingerprint(), v.Version)
	require.Equal(t, s, v.Session())
}

func TestStatusCode(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, StatusCode(types.CodeSystemSyncing))
	require.Equal(t, http.StatusConflict, StatusCode(types.CodeRoomFull))
	require.Equal(t, http.StatusNotFound, StatusCode(types.CodeRoomError))
	require.Equal(t, http.StatusBadRequest, StatusCode(types.CodeInvalidRequest))
	require.Equal(t, http.StatusInternalServerError, StatusCode(types.CodeInternal))
}
