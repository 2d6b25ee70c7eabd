package election

import (
	"fmt"
	"time"

	"github.com/wwsupercheese/tictactoe/types"
)

// Timings holds the election timing parameters.
type Timings struct {
	// LeaseTTL is the lease time-to-live. A holder that stops renewing loses
	// the key after this long.
	LeaseTTL time.Duration `yaml:"leaseTTL"`

	// RetryInterval is the wait between failed acquire attempts.
	RetryInterval time.Duration `yaml:"retryInterval"`

	// RenewInterval is the leader's renewal period. Must be well below LeaseTTL.
	RenewInterval time.Duration `yaml:"renewInterval"`

	// ErrorBackoff is the wait after a coordination error.
	ErrorBackoff time.Duration `yaml:"errorBackoff"`

	// OperationTimeout bounds every single coordination call.
	OperationTimeout time.Duration `yaml:"operationTimeout"`
}

// DefaultTimings returns the production timings.
func DefaultTimings() Timings {
	return Timings{
		LeaseTTL:         10 * time.Second,
		RetryInterval:    time.Second,
		RenewInterval:    time.Second,
		ErrorBackoff:     2 * time.Second,
		OperationTimeout: 3 * time.Second,
	}
}

// SetDefaults fills zero fields with DefaultTimings values.
func (t *Timings) SetDefaults() {
	def := DefaultTimings()
	if t.LeaseTTL <= 0 {
		t.LeaseTTL = def.LeaseTTL
	}
	if t.RetryInterval <= 0 {
		t.RetryInterval = def.RetryInterval
	}
	if t.RenewInterval <= 0 {
		t.RenewInterval = def.RenewInterval
	}
	if t.ErrorBackoff <= 0 {
		t.ErrorBackoff = def.ErrorBackoff
	}
	if t.OperationTimeout <= 0 {
		t.OperationTimeout = def.OperationTimeout
	}
}

// Validate checks the timing constraints.
func (t Timings) Validate() error {
	if t.LeaseTTL <= 0 || t.RetryInterval <= 0 || t.RenewInterval <= 0 ||
		t.ErrorBackoff <= 0 || t.OperationTimeout <= 0 {
		return fmt.Errorf("%w: election timings must be positive", types.ErrInvalidConfig)
	}
	if t.RenewInterval >= t.LeaseTTL {
		return fmt.Errorf("%w: renewInterval (%v) must be less than leaseTTL (%v)",
			types.ErrInvalidConfig, t.RenewInterval, t.LeaseTTL)
	}

	return nil
}
