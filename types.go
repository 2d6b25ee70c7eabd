package tictactoe

import "github.com/wwsupercheese/tictactoe/types"

// Re-export types from the types package.
//
// Internal packages depend on types without depending on the root package,
// while users get tictactoe.Role, tictactoe.Logger and so on.
type (
	Role         = types.Role
	Tier         = types.Tier
	ConnState    = types.ConnState
	Registration = types.Registration
)

// Re-export interfaces from the types package for convenience.
type (
	Coordinator      = types.Coordinator
	Registrar        = types.Registrar
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export constants from the types package.
const (
	RoleFollower  = types.RoleFollower
	RoleCandidate = types.RoleCandidate
	RoleLeader    = types.RoleLeader

	TierGame = types.TierGame
	TierData = types.TierData

	Disconnected = types.Disconnected
	Connected    = types.Connected
)
