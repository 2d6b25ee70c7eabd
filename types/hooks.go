package types

import "context"

// Hooks are optional callbacks fired by the elector and the manager.
//
// Callbacks run on their own goroutine with a context that is cancelled
// when the instance stops, so a slow callback never delays a lease renewal.
// A returned error is logged and otherwise ignored.
//
//	hooks := &tictactoe.Hooks{
//	    OnLeaderChanged: func(ctx context.Context, leader string) error {
//	        log.Printf("tier leader is now %q", leader)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnRoleChanged fires on every election role transition of this instance.
	OnRoleChanged func(ctx context.Context, from, to Role) error

	// OnLeaderChanged fires when the observed tier leader changes. leader is
	// empty while the leader key is vacant.
	OnLeaderChanged func(ctx context.Context, leader string) error

	// OnError fires on errors the instance recovers from by itself, such as
	// a failed renewal or replication pass.
	OnError func(ctx context.Context, err error) error
}
