package consul

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ttttest "github.com/wwsupercheese/tictactoe/testing"
	"github.com/wwsupercheese/tictactoe/types"
)

const key = "service/tictactoe-orm/leader"

func TestCoordinator(t *testing.T) {
	addr := ttttest.StartConsul(t)

	client, err := NewClient(t.Context(), Config{Address: addr})
	require.NoError(t, err)
	c := New(client)

	t.Run("acquire read release", func(t *testing.T) {
		ctx := t.Context()

		a, err := c.CreateLease(ctx, "a", 10*time.Second)
		require.NoError(t, err)
		b, err := c.CreateLease(ctx, "b", 10*time.Second)
		require.NoError(t, err)
		defer func() { _ = c.Release(ctx, b) }()

		ok, err := c.Acquire(ctx, key, a, []byte("http://a:5002"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = c.Acquire(ctx, key, b, []byte("http://b:5002"))
		require.NoError(t, err)
		require.False(t, ok)

		entry, found, err := c.Read(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "http://a:5002", entry.Value)
		require.Equal(t, a, entry.LeaseID)

		require.NoError(t, c.Renew(ctx, a))
		require.NoError(t, c.Release(ctx, a))

		_, found, err = c.Read(ctx, key)
		require.NoError(t, err)
		require.False(t, found, "delete behavior removes the key with the session")

		require.ErrorIs(t, c.Renew(ctx, a), types.ErrLeaseNotFound)

		// No lock-delay: the key is immediately acquirable.
		ok, err = c.Acquire(ctx, key, b, []byte("http://b:5002"))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("registrar", func(t *testing.T) {
		ctx := t.Context()
		r := NewRegistrar(client)

		reg := types.Registration{
			Tier:          types.TierData,
			ID:            "tictactoe-orm-5002",
			Host:          "127.0.0.1",
			Port:          5002,
			CheckInterval: 2 * time.Second,
		}
		require.NoError(t, r.Register(ctx, reg))

		require.Eventually(t, func() bool {
			instances, err := r.Instances(ctx, types.TierData)
			return err == nil && len(instances) == 1 && instances[0].ID == "tictactoe-orm-5002"
		}, 10*time.Second, 100*time.Millisecond)

		require.NoError(t, r.Deregister(ctx, reg))
		require.Eventually(t, func() bool {
			instances, err := r.Instances(ctx, types.TierData)
			return err == nil && len(instances) == 0
		}, 10*time.Second, 100*time.Millisecond)
	})
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, Config{Address: "127.0.0.1:1"})
	require.ErrorIs(t, err, types.ErrConnectivity)
}
