package types

import (
	"context"
	"time"
)

// LockEntry is the current content of a lock key.
type LockEntry struct {
	// Value is the payload written by the holder (its advertised address).
	Value string

	// LeaseID is the lease currently holding the key. Empty when the key
	// exists but is not held by any live lease.
	LeaseID string
}

// Held reports whether a live lease holds the key.
func (e LockEntry) Held() bool {
	return e.LeaseID != ""
}

// Coordinator is the narrow contract consumed from a distributed lock and
// key/value service.
//
// Implementations must provide mutual exclusion: for a given key, at most one
// live lease holds it at any instant. A lease that is not renewed within its
// TTL is invalidated immediately (no lock-delay window) and every key it held
// is deleted, so a crashed holder frees its slot as soon as the TTL passes.
//
// Implementations can use:
//   - Consul sessions + KV acquire (coordination/consul)
//   - etcd leases + transactions (coordination/etcd)
//   - NATS JetStream KV (coordination/natskv)
//   - An in-process fake for tests (coordination/memory)
//
// All methods are blocking; callers bound them with a context deadline.
type Coordinator interface {
	// CreateLease creates a lease with the given TTL.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - name: Human readable lease name (diagnostics only)
	//   - ttl: Lease time-to-live
	//
	// Returns:
	//   - string: Lease identifier
	//   - error: Coordination error
	CreateLease(ctx context.Context, name string, ttl time.Duration) (string, error)

	// Acquire attempts to take the lock key with the given lease, writing value
	// on success. Acquiring a key already held by the same lease succeeds and
	// updates the value.
	//
	// Returns:
	//   - bool: true if the lease now holds the key
	//   - error: Coordination error (a held key is not an error)
	Acquire(ctx context.Context, key, leaseID string, value []byte) (bool, error)

	// Renew extends the lease by its TTL.
	//
	// Returns ErrLeaseNotFound when the lease expired or was released.
	Renew(ctx context.Context, leaseID string) error

	// Read returns the current content of a lock key.
	//
	// Returns:
	//   - LockEntry: Key content (zero value when absent)
	//   - bool: true if the key exists
	//   - error: Coordination error
	Read(ctx context.Context, key string) (LockEntry, bool, error)

	// Release destroys the lease. Keys held by the lease are deleted.
	// Releasing an unknown lease is not an error.
	Release(ctx context.Context, leaseID string) error
}

// Lease describes a held leadership lease.
type Lease struct {
	Tier    Tier
	Holder  string
	LeaseID string
	TTL     time.Duration
}
