package handlers

import "log/slog"

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
