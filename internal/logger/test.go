package logger

import (
	"fmt"
	"strings"
	"testing"

	"github.com/wwsupercheese/tictactoe/types"
)

// TestLogger writes entries to tb.Log, so they show up under the test that
// produced them and only when it fails or runs with -v. Fatal fails the test.
type TestLogger struct {
	tb testing.TB
}

var _ types.Logger = (*TestLogger)(nil)

// NewTest returns a TestLogger for tb.
func NewTest(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) Debug(msg string, kv ...any) { l.tb.Helper(); l.log("DEBUG", msg, kv) }
func (l *TestLogger) Info(msg string, kv ...any)  { l.tb.Helper(); l.log("INFO", msg, kv) }
func (l *TestLogger) Warn(msg string, kv ...any)  { l.tb.Helper(); l.log("WARN", msg, kv) }
func (l *TestLogger) Error(msg string, kv ...any) { l.tb.Helper(); l.log("ERROR", msg, kv) }

func (l *TestLogger) Fatal(msg string, kv ...any) {
	l.tb.Helper()
	l.tb.Fatalf("FATAL %s %s", msg, formatKeyValues(kv))
}

func (l *TestLogger) log(level, msg string, kv []any) {
	l.tb.Helper()
	l.tb.Logf("%-5s %s %s", level, msg, formatKeyValues(kv))
}

// formatKeyValues renders pairs as key=value. A trailing key without a
// value is shown as key=<missing>.
func formatKeyValues(kv []any) string {
	pairs := make([]string, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		var v any = "<missing>"
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		pairs = append(pairs, fmt.Sprintf("%v=%v", kv[i], v))
	}

	return strings.Join(pairs, " ")
}
