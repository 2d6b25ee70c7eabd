package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	ttttest "github.com/wwsupercheese/tictactoe/testing"
	"github.com/wwsupercheese/tictactoe/types"
)

const key = "tictactoe-orm-service.tictactoe-orm-service-5002"

func TestStart(t *testing.T) {
	_, nc := ttttest.StartEmbeddedNATS(t)
	kv := ttttest.NewKVBucket(t, nc, "hb-start", time.Minute)

	t.Run("writes before returning", func(t *testing.T) {
		b, err := Start(t.Context(), kv, key, []byte(`{"port":5002}`), time.Second, nil)
		require.NoError(t, err)
		defer func() { _ = b.Stop(context.Background()) }()

		entry, err := kv.Get(t.Context(), b.Key())
		require.NoError(t, err)
		require.JSONEq(t, `{"port":5002}`, string(entry.Value()))
	})

	t.Run("invalid interval", func(t *testing.T) {
		_, err := Start(t.Context(), kv, key, nil, 0, nil)
		require.ErrorIs(t, err, types.ErrInvalidConfig)
	})

	t.Run("first write fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := Start(ctx, kv, key, nil, time.Second, nil)
		require.Error(t, err)
	})
}

func TestBeat_KeepsRewriting(t *testing.T) {
	_, nc := ttttest.StartEmbeddedNATS(t)
	kv := ttttest.NewKVBucket(t, nc, "hb-rewrite", time.Minute)

	b, err := Start(t.Context(), kv, key, []byte("x"), 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = b.Stop(context.Background()) }()

	first, err := kv.Get(t.Context(), key)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, err := kv.Get(t.Context(), key)
		return err == nil && cur.Revision() > first.Revision()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBeat_Stop(t *testing.T) {
	_, nc := ttttest.StartEmbeddedNATS(t)
	kv := ttttest.NewKVBucket(t, nc, "hb-stop", time.Minute)

	a, err := Start(t.Context(), kv, key, []byte("a"), 50*time.Millisecond, nil)
	require.NoError(t, err)
	b, err := Start(t.Context(), kv, "tictactoe-service.tictactoe-service-5001", []byte("b"), 50*time.Millisecond, nil)
	require.NoError(t, err)

	require.NoError(t, a.Stop(t.Context()))
	require.NoError(t, a.Stop(t.Context()), "stop is idempotent")

	_, err = kv.Get(t.Context(), a.Key())
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)

	// Give a stray tick the chance to resurrect the key.
	time.Sleep(150 * time.Millisecond)
	_, err = kv.Get(t.Context(), a.Key())
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)

	_, err = kv.Get(t.Context(), b.Key())
	require.NoError(t, err)
	require.NoError(t, b.Stop(t.Context()))
}

func TestBeat_ExpiresAfterCrash(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for bucket TTL")
	}

	_, nc := ttttest.StartEmbeddedNATS(t)
	kv := ttttest.NewKVBucket(t, nc, "hb-ttl", time.Second)

	// A beat much slower than the TTL looks like a process that died after
	// its first write.
	b, err := Start(t.Context(), kv, key, []byte("x"), time.Hour, nil)
	require.NoError(t, err)
	defer func() { _ = b.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		_, err := kv.Get(t.Context(), key)
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}
