package testing

import (
	"testing"

	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/types"
)

// NewTestLogger returns a logger writing through t.Logf.
func NewTestLogger(t testing.TB) types.Logger {
	return logger.NewTest(t)
}
