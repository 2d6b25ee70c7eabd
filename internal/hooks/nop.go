// Package hooks fills unset lifecycle callbacks so the elector and the
// manager can call every callback without nil checks.
package hooks

import (
	"context"

	"github.com/wwsupercheese/tictactoe/types"
)

func nopRole(context.Context, types.Role, types.Role) error { return nil }
func nopLeader(context.Context, string) error              { return nil }
func nopError(context.Context, error) error                { return nil }

// NewNop returns hooks whose callbacks all do nothing.
func NewNop() types.Hooks {
	return types.Hooks{
		OnRoleChanged:   nopRole,
		OnLeaderChanged: nopLeader,
		OnError:         nopError,
	}
}

// Fill returns a copy of h with its nil callbacks replaced by no-ops.
// A nil h yields NewNop().
func Fill(h *types.Hooks) types.Hooks {
	if h == nil {
		return NewNop()
	}

	out := *h
	if out.OnRoleChanged == nil {
		out.OnRoleChanged = nopRole
	}
	if out.OnLeaderChanged == nil {
		out.OnLeaderChanged = nopLeader
	}
	if out.OnError == nil {
		out.OnError = nopError
	}

	return out
}
