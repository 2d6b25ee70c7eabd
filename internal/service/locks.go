package service

import (
	"sync"

	"github.com/wwsupercheese/tictactoe/types"
)

// LeaderGate reports whether this instance may serve leader-only requests.
type LeaderGate interface {
	IsLeader() bool
}

type alwaysLeader struct{}

func (alwaysLeader) IsLeader() bool { return true }

// roomLocks hands out one mutex per room. An entry lives only while a
// request holds or waits for it, so the table is bounded by the rooms in
// flight, not by every room ever played.
type roomLocks struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int // holders plus waiters, guarded by roomLocks.mu
}

func newRoomLocks() *roomLocks {
	return &roomLocks{rooms: make(map[string]*roomLock)}
}

// lock acquires the room's mutex and returns its unlock function.
func (l *roomLocks) lock(room string) func() {
	l.mu.Lock()
	rl, ok := l.rooms[room]
	if !ok {
		rl = &roomLock{}
		l.rooms[room] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()

	return func() {
		rl.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.rooms, room)
		}
		l.mu.Unlock()
	}
}

// len returns the number of rooms with a holder or waiter.
func (l *roomLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.rooms)
}

var errNotLeader = notLeaderError{}

// notLeaderError matches both types.ErrNotLeader and
// types.ErrBackingStoreUnavailable.
type notLeaderError struct{}

func (notLeaderError) Error() string {
	return "not leader, system syncing"
}

func (notLeaderError) Is(target error) bool {
	return target == types.ErrNotLeader || target == types.ErrBackingStoreUnavailable
}
