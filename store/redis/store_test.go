package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wwsupercheese/tictactoe/game"
	ttttest "github.com/wwsupercheese/tictactoe/testing"
	"github.com/wwsupercheese/tictactoe/types"
)

func TestCodec(t *testing.T) {
	sess := game.NewSession("1234", "alice")
	sess, _ = sess.Join("bob")
	sess, _ = game.TryMove(sess, game.Move{BoardX: 2, BoardY: 0, CellX: 1, CellY: 1}, "alice")

	fields := make(map[string]string)
	for k, v := range encode(sess) {
		fields[k] = fmt.Sprint(v)
	}

	got, err := decode("1234", fields)
	require.NoError(t, err)
	require.Equal(t, sess, got)

	fields["is_x_turn"] = "maybe"
	_, err = decode("1234", fields)
	require.Error(t, err)
}

func TestStore(t *testing.T) {
	addr := ttttest.StartRedis(t)
	ctx := t.Context()

	s, err := Open(ctx, Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Load(ctx, "1234")
	require.ErrorIs(t, err, types.ErrNotFound)

	sess := game.NewSession("1234", "alice")
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Load(ctx, "1234")
	require.NoError(t, err)
	require.Equal(t, sess, got)

	room, found, err := s.FindByPlayer(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1234", room)

	require.NoError(t, s.Save(ctx, game.NewSession("5678", "bob")))
	require.NoError(t, s.Delete(ctx, "1234"))
	_, found, err = s.FindByPlayer(ctx, "alice")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.EnsurePublication(ctx))
	require.NoError(t, s.Truncate(ctx))
	_, err = s.Load(ctx, "5678")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestStore_Replication(t *testing.T) {
	leaderNode := ttttest.StartRedisNode(t)
	followerNode := ttttest.StartRedisNode(t)
	ctx := t.Context()

	leader, err := Open(ctx, Config{Addr: leaderNode.Addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = leader.Close() })

	follower, err := Open(ctx, Config{Addr: followerNode.Addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = follower.Close() })

	require.NoError(t, leader.EnsurePublication(ctx))
	require.NoError(t, leader.Save(ctx, game.NewSession("1", "alice")))

	require.NoError(t, follower.DropSubscription(ctx))
	require.NoError(t, follower.Save(ctx, game.NewSession("stale", "zed")))
	require.NoError(t, follower.Truncate(ctx))
	require.NoError(t, follower.Subscribe(ctx, "http://"+leaderNode.IP+":5131"))

	require.Eventually(t, func() bool {
		got, err := follower.Load(ctx, "1")
		return err == nil && got.PlayerX == "alice"
	}, 10*time.Second, 100*time.Millisecond)

	require.NoError(t, leader.Save(ctx, game.NewSession("2", "bob")))
	require.Eventually(t, func() bool {
		_, err := follower.Load(ctx, "2")
		return err == nil
	}, 10*time.Second, 100*time.Millisecond)

	_, err = follower.Load(ctx, "stale")
	require.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, follower.DropSubscription(ctx))
}
