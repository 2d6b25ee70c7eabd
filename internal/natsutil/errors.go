// Package natsutil classifies NATS client errors for the NATS-backed
// coordinator and registrar.
package natsutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/wwsupercheese/tictactoe/types"
)

// transient lists the client errors raised while the server cannot be
// reached. The election loop backs off on them instead of stepping down
// immediately.
var transient = []error{
	types.ErrConnectivity,
	nats.ErrTimeout,
	nats.ErrNoServers,
	nats.ErrDisconnected,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	jetstream.ErrNoStreamResponse,
}

// Unreachable reports whether err means the NATS server could not be
// reached, as opposed to a rejected KV operation.
func Unreachable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range transient {
		if errors.Is(err, target) {
			return true
		}
	}

	msg := err.Error()

	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "i/o timeout")
}

// Wrap prefixes err with op. Unreachable errors are also marked with
// types.ErrConnectivity.
func Wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrConnectivity) || !Unreachable(err):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, types.ErrConnectivity, err)
	}
}
