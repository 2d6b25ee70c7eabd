package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	ttttest "github.com/wwsupercheese/tictactoe/testing"
)

// TestEnsureBucket_Concurrent starts several instances racing to create
// the same bucket; each must end up with a handle to it.
func TestEnsureBucket_Concurrent(t *testing.T) {
	_, nc := ttttest.StartEmbeddedNATS(t)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	const instances = 5
	cfg := jetstream.KeyValueConfig{Bucket: "tictactoe-locks", History: 1}

	var wg sync.WaitGroup
	kvs := make([]jetstream.KeyValue, instances)
	errs := make([]error, instances)
	for i := range instances {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			kvs[idx], errs[idx] = EnsureBucket(ctx, js, cfg)
		}(i)
	}
	wg.Wait()

	for i := range instances {
		require.NoError(t, errs[i])
		require.NotNil(t, kvs[i])
	}

	_, err = kvs[0].Put(ctx, "service.tictactoe-orm.leader", []byte("x"))
	require.NoError(t, err)

	entry, err := kvs[instances-1].Get(ctx, "service.tictactoe-orm.leader")
	require.NoError(t, err)
	require.Equal(t, "x", string(entry.Value()))
}

func TestEnsureBucket_CancelledContext(t *testing.T) {
	_, nc := ttttest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "never"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	require.Equal(t, 10*time.Millisecond, Backoff(0, 10*time.Millisecond, time.Second))
	require.Equal(t, 40*time.Millisecond, Backoff(2, 10*time.Millisecond, time.Second))
	require.Equal(t, time.Second, Backoff(10, 10*time.Millisecond, time.Second))
	require.Equal(t, time.Second, Backoff(64, 10*time.Millisecond, time.Second))
	require.Equal(t, 10*time.Millisecond, Backoff(-3, 10*time.Millisecond, time.Second))
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(t.Context(), time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
