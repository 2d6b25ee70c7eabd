// Package natskv implements types.Coordinator and types.Registrar on NATS
// JetStream key-value buckets.
//
// # Leases
//
// A lease is a key in a bucket whose MaxAge equals the lease TTL; one bucket
// is created per distinct TTL. Renew re-puts the key, restarting its age.
// A lease that is not renewed disappears after the TTL.
//
// # Locks
//
// Lock keys live in a bucket without TTL. A lock record names the holding
// lease. Acquire uses KV Create for a free key and a revision-checked Update
// to take over a key whose holding lease is gone, so two contenders can
// never both win. Readers treat a record whose lease is gone as absent and
// delete it, which gives delete-on-invalidate semantics without lock-delay.
//
// # Registration
//
// Registrar keeps one key per instance alive with a heartbeat publisher in a
// bucket whose TTL is three check intervals.
package natskv
