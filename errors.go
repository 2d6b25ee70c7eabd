package tictactoe

import "github.com/wwsupercheese/tictactoe/types"

// Sentinel errors re-exported from the types package. Match them with errors.Is.
var (
	ErrInvalidConfig       = types.ErrInvalidConfig
	ErrCoordinatorRequired = types.ErrCoordinatorRequired
	ErrStoreRequired       = types.ErrStoreRequired
	ErrAlreadyStarted      = types.ErrAlreadyStarted
	ErrNotStarted          = types.ErrNotStarted

	ErrBackingStoreUnavailable = types.ErrBackingStoreUnavailable
	ErrRoomNotFound            = types.ErrRoomNotFound
	ErrRoomFull                = types.ErrRoomFull
	ErrNotFound                = types.ErrNotFound
	ErrRoomError               = types.ErrRoomError
	ErrInvalidRequest          = types.ErrInvalidRequest

	ErrNotConnected     = types.ErrNotConnected
	ErrRetriesExhausted = types.ErrRetriesExhausted
	ErrUnreachable      = types.ErrUnreachable
)
