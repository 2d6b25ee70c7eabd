package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/store"
	"github.com/wwsupercheese/tictactoe/types"
)

// DataService implements the data-tier operations on a store.
//
// Reads are served by every instance, so a follower answers from its
// replica. Writes are leader-only.
type DataService struct {
	store store.Store
	locks *roomLocks
	options
}

var _ DataTier = (*DataService)(nil)

// NewDataService creates a data service on top of st.
func NewDataService(st store.Store, opts ...Option) *DataService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &DataService{store: st, locks: newRoomLocks(), options: o}
}

// CheckSession implements DataTier.
func (d *DataService) CheckSession(ctx context.Context, player string) (string, bool, error) {
	return d.store.FindByPlayer(ctx, player)
}

// Load implements DataTier.
func (d *DataService) Load(ctx context.Context, room string) (game.Session, error) {
	if room == "" {
		return game.Session{}, fmt.Errorf("%w: empty room id", types.ErrInvalidRequest)
	}

	return d.store.Load(ctx, room)
}

// Save implements DataTier.
func (d *DataService) Save(ctx context.Context, s game.Session) error {
	if !d.gate.IsLeader() {
		return errNotLeader
	}

	defer d.locks.lock(s.Room)()

	return d.store.Save(ctx, s)
}

// Delete implements DataTier.
func (d *DataService) Delete(ctx context.Context, room string) error {
	if !d.gate.IsLeader() {
		return errNotLeader
	}

	defer d.locks.lock(room)()

	return d.store.Delete(ctx, room)
}

// ExitSeat implements DataTier. It reports false when the room does not
// exist or player holds no seat in it.
func (d *DataService) ExitSeat(ctx context.Context, room, player string) (bool, error) {
	if !d.gate.IsLeader() {
		return false, errNotLeader
	}

	defer d.locks.lock(room)()

	sess, err := d.store.Load(ctx, room)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	sess, ok := sess.Vacate(player)
	if !ok {
		return false, nil
	}

	if sess.Empty() {
		d.logger.Info("room closed", "room", room)
		return true, d.store.Delete(ctx, room)
	}

	return true, d.store.Save(ctx, sess)
}
