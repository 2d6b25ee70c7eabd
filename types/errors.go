package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tictactoe backend.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// Components wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Manager, Election, Service, Discovery, ...)
//   - Errors that cross the tier boundary carry a stable wire code (see ErrorCode)

// Manager errors - Public API errors returned by the Manager component.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCoordinatorRequired is returned when no coordination client is configured.
	ErrCoordinatorRequired = errors.New("coordinator is required")

	// ErrStoreRequired is returned when a data-tier manager has no session store.
	ErrStoreRequired = errors.New("session store is required")

	// ErrAlreadyStarted is returned when Start is called on an already running component.
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotStarted is returned when operations require a started component.
	ErrNotStarted = errors.New("not started")
)

// Coordination errors - returned by Coordinator implementations and the elector.
var (
	// ErrLeaseNotFound is returned when renewing a lease that expired or was released.
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrConnectivity indicates the coordination service could not be reached.
	ErrConnectivity = errors.New("coordination service unreachable")

	// ErrLeadershipLost is returned when a leader fails to confirm its lock.
	ErrLeadershipLost = errors.New("leadership was lost")

	// ErrNotLeader is returned by a tier follower asked to serve leader-only requests.
	ErrNotLeader = errors.New("not the leader")
)

// Service errors - cross the tier boundary with a wire code.
var (
	// ErrBackingStoreUnavailable is returned when the data tier has no known
	// leader yet (or the contacted instance is not the leader). Callers retry
	// it after a short backoff instead of giving up.
	ErrBackingStoreUnavailable = errors.New("backing store unavailable: system syncing")

	// ErrRoomNotFound is returned by a join-only request for a missing room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when both seats of a room are taken.
	ErrRoomFull = errors.New("room is full")

	// ErrNotFound is returned when reading or resetting a missing room.
	ErrNotFound = errors.New("not found")

	// ErrRoomError is returned when a move targets a missing room.
	ErrRoomError = errors.New("room error")

	// ErrInvalidRequest is returned for malformed requests (empty ids, bad coordinates).
	ErrInvalidRequest = errors.New("invalid request")
)

// Discovery errors - returned by the leader-discovery client.
var (
	// ErrNotConnected is returned when no leader connection is established.
	ErrNotConnected = errors.New("not connected to a leader")

	// ErrRetriesExhausted is returned after the bounded retry budget is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrUnreachable marks transport failures talking to a leader. The
	// discovery client drops its connection and rediscovers on this error.
	ErrUnreachable = errors.New("leader unreachable")
)

// Replication errors.
var (
	// ErrReplicationFailed is returned when reconfiguring the replication role fails.
	ErrReplicationFailed = errors.New("replication reconfiguration failed")
)

// IsDomainError reports whether err is a game-rule outcome (a missing or
// full room, a malformed request) rather than a failure of the tier that
// answered it.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrRoomNotFound, ErrRoomFull, ErrNotFound, ErrRoomError, ErrInvalidRequest} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// Wire codes of errors that cross the tier boundary.
const (
	CodeSystemSyncing  = "SYSTEM_SYNCING"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeRoomFull       = "ROOM_FULL"
	CodeNotFound       = "NOT_FOUND"
	CodeRoomError      = "ROOM_ERROR"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternal       = "INTERNAL"
)

var codeTable = []struct {
	code string
	err  error
}{
	{CodeSystemSyncing, ErrBackingStoreUnavailable},
	{CodeRoomNotFound, ErrRoomNotFound},
	{CodeRoomFull, ErrRoomFull},
	{CodeNotFound, ErrNotFound},
	{CodeRoomError, ErrRoomError},
	{CodeInvalidRequest, ErrInvalidRequest},
}

// ErrorCode returns the wire code for err.
//
// ErrNotLeader maps to CodeSystemSyncing: a follower refusing traffic is a
// transient condition for the caller, same as a data tier without leader.
//
// Returns:
//   - string: Wire code, CodeInternal for unknown errors, "" for nil
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotLeader) {
		return CodeSystemSyncing
	}
	for _, c := range codeTable {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return CodeInternal
}

// ErrorFromCode rebuilds a sentinel-wrapped error from a wire code.
//
// Parameters:
//   - code: Wire code received from the remote tier
//   - message: Remote error message (kept for context)
//
// Returns:
//   - error: Error matching the sentinel with errors.Is, nil for an empty code
func ErrorFromCode(code, message string) error {
	if code == "" {
		return nil
	}
	for _, c := range codeTable {
		if c.code == code {
			if message == "" || message == c.err.Error() {
				return c.err
			}

			return fmt.Errorf("%w: %s", c.err, message)
		}
	}

	return fmt.Errorf("remote error %s: %s", code, message)
}
