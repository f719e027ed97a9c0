// Package logging builds the process-wide slog logger with file rotation.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger at the given level. When dir is
// non-empty, output also goes to a size-rotated file under it.
func New(level, dir string) *slog.Logger {
	var writer io.Writer = os.Stdout

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			fileLogger := &lumberjack.Logger{
				Filename:   filepath.Join(dir, "trading-engine.log"),
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			writer = io.MultiWriter(os.Stdout, fileLogger)
		}
	}

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: lvl}))
}
