package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger returns the application logger. With debug off every record is
// discarded; with debug on records go to <dataDir>/debug.log at Debug level.
// The returned closer releases the log file.
func NewLogger(dataDir string, debug bool) (*slog.Logger, io.Closer, error) {
	if !debug {
		return slog.New(slog.DiscardHandler), nopCloser{}, nil
	}

	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: tool arguments and results may be sensitive
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open debug log at %s: %w", logPath, err)
	}

	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	logger.Debug("=== Debug logging started ===", "path", logPath)

	return logger, f, nil
}
