// Package memory provides an in-process session store.
//
// Engines attached to the same Network replicate like publisher/subscriber
// database nodes: a subscriber copies the publisher's content on Subscribe
// and then receives every later write until DropSubscription.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/store"
	"github.com/wwsupercheese/tictactoe/types"
)

// Network connects engines by their advertised leader address.
type Network struct {
	engines *xsync.Map[string, *Store]
}

// NewNetwork creates an empty replication network.
func NewNetwork() *Network {
	return &Network{engines: xsync.NewMap[string, *Store]()}
}

// Store is an in-memory store.Engine.
type Store struct {
	addr    string
	network *Network
	rooms   *xsync.Map[string, game.Session]

	mu          sync.Mutex
	publishing  bool
	subscribers map[*Store]struct{}
	upstream    *Store
	closed      bool
}

var _ store.Engine = (*Store)(nil)

// New creates a standalone store that is not attached to any network.
func New() *Store {
	return &Store{
		rooms:       xsync.NewMap[string, game.Session](),
		subscribers: make(map[*Store]struct{}),
	}
}

// Join creates a store attached to the network under addr, the address the
// data-tier instance advertises as leader.
func (n *Network) Join(addr string) *Store {
	s := New()
	s.addr = addr
	s.network = n
	n.engines.Store(addr, s)

	return s
}

// Load implements store.Store.
func (s *Store) Load(_ context.Context, room string) (game.Session, error) {
	sess, ok := s.rooms.Load(room)
	if !ok {
		return game.Session{}, fmt.Errorf("room %s: %w", room, types.ErrNotFound)
	}

	return sess, nil
}

// Save implements store.Store.
func (s *Store) Save(_ context.Context, sess game.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrNotStarted
	}

	s.rooms.Store(sess.Room, sess)
	s.fanOutLocked(func(sub *Store) { sub.rooms.Store(sess.Room, sess) })

	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrNotStarted
	}

	s.rooms.Delete(room)
	s.fanOutLocked(func(sub *Store) { sub.rooms.Delete(room) })

	return nil
}

// FindByPlayer implements store.Store.
func (s *Store) FindByPlayer(_ context.Context, player string) (string, bool, error) {
	if player == "" {
		return "", false, nil
	}

	var room string
	s.rooms.Range(func(id string, sess game.Session) bool {
		if sess.HasPlayer(player) {
			room = id
			return false
		}

		return true
	})

	return room, room != "", nil
}

// Len returns the number of stored rooms.
func (s *Store) Len() int {
	return s.rooms.Size()
}

// Close detaches the store from its network.
func (s *Store) Close() error {
	s.dropUpstream()

	s.mu.Lock()
	s.closed = true
	s.subscribers = make(map[*Store]struct{})
	s.mu.Unlock()

	if s.network != nil {
		if cur, ok := s.network.engines.Load(s.addr); ok && cur == s {
			s.network.engines.Delete(s.addr)
		}
	}

	return nil
}

// EnsurePublication implements store.Replicator.
func (s *Store) EnsurePublication(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishing = true

	return nil
}

// DropSubscription implements store.Replicator.
func (s *Store) DropSubscription(_ context.Context) error {
	s.dropUpstream()

	return nil
}

// Truncate implements store.Replicator.
func (s *Store) Truncate(_ context.Context) error {
	s.rooms.Clear()

	return nil
}

// Subscribe implements store.Replicator.
func (s *Store) Subscribe(_ context.Context, leader string) error {
	if s.network == nil {
		return fmt.Errorf("%w: store is not attached to a network", types.ErrReplicationFailed)
	}

	up, ok := s.network.engines.Load(leader)
	if !ok {
		return fmt.Errorf("%w: no engine at %s", types.ErrReplicationFailed, leader)
	}
	if up == s {
		return fmt.Errorf("%w: cannot subscribe to self", types.ErrReplicationFailed)
	}

	s.dropUpstream()

	up.mu.Lock()
	if !up.publishing || up.closed {
		up.mu.Unlock()
		return fmt.Errorf("%w: %s has no publication", types.ErrReplicationFailed, leader)
	}

	// The snapshot and the registration happen under the publisher's lock
	// so no write falls between them.
	up.rooms.Range(func(room string, sess game.Session) bool {
		s.rooms.Store(room, sess)
		return true
	})
	up.subscribers[s] = struct{}{}
	up.mu.Unlock()

	s.mu.Lock()
	s.upstream = up
	s.mu.Unlock()

	return nil
}

// Upstream returns the address of the engine this store replicates from.
func (s *Store) Upstream() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upstream == nil {
		return ""
	}

	return s.upstream.addr
}

// Publishing reports whether EnsurePublication was called.
func (s *Store) Publishing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.publishing
}

func (s *Store) dropUpstream() {
	s.mu.Lock()
	up := s.upstream
	s.upstream = nil
	s.mu.Unlock()

	if up == nil {
		return
	}

	up.mu.Lock()
	delete(up.subscribers, s)
	up.mu.Unlock()
}

// fanOutLocked applies a write to every subscriber. Subscribers only
// receive writes while attached; cascading is not supported.
func (s *Store) fanOutLocked(apply func(sub *Store)) {
	for sub := range s.subscribers {
		apply(sub)
	}
}
