package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ElectionMetrics
	ReplicationMetrics
	DiscoveryMetrics
	GameMetrics
}

// ElectionMetrics defines metrics for leader election.
type ElectionMetrics interface {
	// RecordRoleTransition records an election role transition.
	//
	// Parameters:
	//   - tier: Tier the elector runs for
	//   - from: Previous role
	//   - to: New role
	RecordRoleTransition(tier Tier, from, to Role)

	// RecordLeaderChange records a change of the observed leader address.
	RecordLeaderChange(tier Tier, leader string)

	// RecordCoordinationError records a failed coordination call.
	//
	// Parameters:
	//   - operation: "create_lease", "acquire", "renew", "read", "release"
	RecordCoordinationError(operation string)
}

// ReplicationMetrics defines metrics for the replication controller.
type ReplicationMetrics interface {
	// RecordReplicationPass records a reconciliation pass.
	//
	// Parameters:
	//   - action: "publish", "resubscribe" or "noop"
	//   - duration: Time taken in seconds
	//   - success: true if the pass completed without error
	RecordReplicationPass(action string, duration float64, success bool)
}

// DiscoveryMetrics defines metrics for the leader-discovery client.
type DiscoveryMetrics interface {
	// RecordReconnect records a (re)connection to a new leader.
	RecordReconnect(tier Tier)

	// RecordRetry records a retried call after a transient unavailability.
	RecordRetry(tier Tier)

	// RecordRetriesExhausted records a call that spent its whole retry budget.
	RecordRetriesExhausted(tier Tier)
}

// GameMetrics defines metrics for game operations.
type GameMetrics interface {
	// RecordRequest records a served request.
	//
	// Parameters:
	//   - operation: "join", "move", "state", "reset", "exit", "check_session"
	//   - code: Wire error code, "" on success
	//   - duration: Time taken in seconds
	RecordRequest(operation, code string, duration float64)

	// RecordMove records an accepted (true) or rejected (false) move.
	RecordMove(accepted bool)
}
