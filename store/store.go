// Package store defines the session store of the data tier and the
// replication administration of its storage engine.
//
// Implementations:
//   - store/memory: in-process engine with simulated replication (tests, single node)
//   - store/postgres: PostgreSQL with logical replication
//   - store/redis: Redis with REPLICAOF
package store

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/types"
)

// Store persists one record per room.
type Store interface {
	// Load returns the session of room, or types.ErrNotFound.
	Load(ctx context.Context, room string) (game.Session, error)

	// Save inserts or replaces the session of s.Room.
	Save(ctx context.Context, s game.Session) error

	// Delete removes the session of room. Deleting a missing room is not an error.
	Delete(ctx context.Context, room string) error

	// FindByPlayer returns the room in which player holds a seat.
	FindByPlayer(ctx context.Context, player string) (room string, found bool, err error)

	// Close releases the store's connections.
	Close() error
}

// Replicator switches the storage engine between publisher and subscriber.
//
// The data-tier leader publishes; every follower subscribes to the leader.
// All operations are idempotent.
type Replicator interface {
	// EnsurePublication makes the local engine publish its changes.
	// An existing publication is not an error.
	EnsurePublication(ctx context.Context) error

	// DropSubscription stops replicating from any publisher. Local data is kept.
	DropSubscription(ctx context.Context) error

	// Truncate erases all local sessions.
	Truncate(ctx context.Context) error

	// Subscribe starts replicating from the engine of the data-tier leader
	// advertised at leader, copying its current content first.
	Subscribe(ctx context.Context, leader string) error
}

// Engine is a store that can also be reconfigured for replication.
type Engine interface {
	Store
	Replicator
}

// LeaderHost extracts the host from an advertised leader address. Both
// URLs ("http://10.0.0.5:5131") and bare host:port pairs are accepted.
func LeaderHost(leader string) (string, error) {
	if leader == "" {
		return "", fmt.Errorf("%w: empty leader address", types.ErrInvalidRequest)
	}

	if u, err := url.Parse(leader); err == nil && u.Host != "" {
		return u.Hostname(), nil
	}

	host, _, err := net.SplitHostPort(leader)
	if err != nil {
		return "", fmt.Errorf("%w: leader address %q: %w", types.ErrInvalidRequest, leader, err)
	}

	return host, nil
}
