package types

import (
	"context"
	"time"
)

// Registration describes one running tier instance.
type Registration struct {
	// Tier the instance belongs to.
	Tier Tier

	// ID uniquely identifies the instance (e.g. "tictactoe-server-5001").
	ID string

	// Host and Port the instance listens on.
	Host string
	Port int

	// CheckInterval is the TCP health-check interval. Zero disables checks.
	CheckInterval time.Duration
}

// Registrar publishes instance registrations to an external registry.
//
// Registrations are owned by the registry: it removes them on Deregister or
// when the health check fails. Discovery clients only read them.
type Registrar interface {
	Register(ctx context.Context, reg Registration) error
	Deregister(ctx context.Context, reg Registration) error
}
