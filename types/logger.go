package types

// Logger is the structured logger every component writes to. Fields are
// passed as alternating keys and values, the way zap's SugaredLogger and
// log/slog take them.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// Fatal logs at the highest level and exits the process.
	Fatal(msg string, keysAndValues ...any)
}
