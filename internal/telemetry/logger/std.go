package logger

import (
	"log"
	"log/slog"
)

// Std returns a *log.Logger that writes every line to l at the given level,
// for libraries that only accept the standard logger.
func Std(l Logger, level slog.Level) *log.Logger {
	return slog.NewLogLogger(l.Slog().Handler(), level)
}
