package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRole_String(t *testing.T) {
	require.Equal(t, "Follower", RoleFollower.String())
	require.Equal(t, "Candidate", RoleCandidate.String())
	require.Equal(t, "Leader", RoleLeader.String())
	require.Equal(t, "Unknown", Role(42).String())
}

func TestConnState_String(t *testing.T) {
	require.Equal(t, "Disconnected", Disconnected.String())
	require.Equal(t, "Connected", Connected.String())
	require.Equal(t, "Unknown", ConnState(7).String())
}

func TestTier_Keys(t *testing.T) {
	tests := []struct {
		tier    Tier
		key     string
		service string
	}{
		{TierGame, "service/tictactoe-service/leader", "tictactoe-service"},
		{TierData, "service/tictactoe-orm/leader", "tictactoe-orm-service"},
		{Tier("custom"), "service/custom/leader", "custom"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			require.Equal(t, tt.key, tt.tier.LeaderKey())
			require.Equal(t, tt.service, tt.tier.ServiceName())
		})
	}

	require.True(t, TierGame.Valid())
	require.True(t, TierData.Valid())
	require.False(t, Tier("custom").Valid())
}
