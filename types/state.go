package types

// Role represents the election role of a tier participant.
//
// Participants follow a cyclic progression for the whole process lifetime:
//
//	RoleFollower → RoleCandidate → RoleLeader → RoleFollower
//
// There is no terminal role. A failed acquire returns the participant from
// RoleCandidate to RoleFollower.
type Role int32

const (
	// RoleFollower is the initial role. The participant does not hold the tier lock.
	RoleFollower Role = iota

	// RoleCandidate indicates a lease was created and the lock acquire is in progress.
	RoleCandidate

	// RoleLeader indicates the participant holds the tier lock.
	RoleLeader
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "Follower"
	case RoleCandidate:
		return "Candidate"
	case RoleLeader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// ConnState represents the connection state of a leader-discovery client.
type ConnState int32

const (
	// Disconnected means no leader is known or the last connection failed.
	Disconnected ConnState = iota

	// Connected means a client to the current leader is established.
	Connected
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Tier names a cooperating service role. Each tier elects its own leader.
type Tier string

const (
	// TierGame is the stateless game-logic tier.
	TierGame Tier = "tictactoe-service"

	// TierData is the stateful data-access tier.
	TierData Tier = "tictactoe-orm"
)

// LeaderKey returns the well-known lock key of the tier.
func (t Tier) LeaderKey() string {
	switch t {
	case TierGame:
		return "service/tictactoe-service/leader"
	case TierData:
		return "service/tictactoe-orm/leader"
	default:
		return "service/" + string(t) + "/leader"
	}
}

// ServiceName returns the name used for service registration.
func (t Tier) ServiceName() string {
	switch t {
	case TierData:
		return "tictactoe-orm-service"
	default:
		return string(t)
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierGame || t == TierData
}
