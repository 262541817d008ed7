package logging

import (
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// New creates a console slog.Logger with the provided level string. When
// file is non-empty, log lines are additionally written there as JSON; if
// the file cannot be opened the logger stays console-only. The returned
// cleanup closes the file.
func New(level, file string) (*slog.Logger, func() error) {
	lvl := levelFromString(level)
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})

	if file == "" {
		return slog.New(consoleHandler), func() error { return nil }
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("cannot open log file, console only", "file", file, "error", err)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: lvl})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler)), f.Close
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
