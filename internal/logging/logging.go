// Package logging sets up the process-wide slog logger. Records go to a
// rotating file because stdout belongs to the recorded terminal.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 14
)

// Levels lists the accepted -l|--log-level values.
var Levels = []string{"trace", "debug", "info", "warn", "error", "off"}

// Init installs the default logger at level, writing to file. The file is
// created lazily. Level "off"
// discards all records. The returned func closes the file.
func Init(level, file string) (func() error, error) {
	lvl, off, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if off {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() error { return nil }, nil
	}

	// lumberjack creates the directory and file on the first record, so a
	// quiet run leaves nothing behind.
	rot := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}

	handler := slog.NewTextHandler(rot, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler).With(slog.Int("pid", os.Getpid())))
	return rot.Close, nil
}

func parseLevel(value string) (slog.Level, bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace", "debug":
		return slog.LevelDebug, false, nil
	case "info":
		return slog.LevelInfo, false, nil
	case "warn", "warning":
		return slog.LevelWarn, false, nil
	case "", "error":
		return slog.LevelError, false, nil
	case "off":
		return slog.LevelError, true, nil
	default:
		return 0, false, fmt.Errorf("logging: unknown level %q (want one of %s)", value, strings.Join(Levels, ", "))
	}
}
