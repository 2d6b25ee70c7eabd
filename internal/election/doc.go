// Package election runs the lease-based leader election of a service tier.
//
// An Elector competes for the tier's well-known lock key through a
// types.Coordinator and publishes its role and the current leader address
// through atomics, so request handlers can read them without locking.
//
// # Lifecycle
//
// Each election round:
//
//  1. CreateLease with the configured TTL (zero lock-delay, keys deleted
//     when the lease is invalidated)
//  2. Candidate: Acquire(tierKey, lease, selfAddress)
//  3. On success the elector is Leader and renews every RenewInterval,
//     re-reading the key to verify it still holds it. Any failure demotes
//     it to Follower immediately.
//  4. On failure it is Follower, reads the key to learn the current leader,
//     waits RetryInterval and tries again.
//  5. The lease is released when the round ends, whatever the outcome.
//
// Coordination errors clear the known leader and back off for ErrorBackoff.
// They are never fatal; Run only returns when its context is cancelled.
//
// # Failover Behavior
//
// A leader that crashes stops renewing; the coordinator drops its lease and
// key once the TTL elapses, and the next candidate round wins. With the
// default timings (TTL 10s, intervals 1s) failover completes in about 11s.
// Observers (followers, discovery clients) may be stale for up to one
// interval.
//
// # Usage
//
//	e := election.New(coord, types.TierData, "http://10.0.0.5:5002",
//	    election.WithLogger(logger),
//	)
//	go e.Run(ctx)
//
//	if e.IsLeader() {
//	    // serve writes
//	}
package election
