// Package logging provides structured logging with per-module log levels.
//
// Built on log/slog with automatic output routing: records go to stdout
// when connected, to the systemd journal when available, and always into
// an in-memory ring buffer that the HTTP API serves as log history.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"proc": "debug",
//			"api":  "warn",
//		},
//	})
//
// Then get a logger per module:
//
//	logger := logging.GetLogger("proc")
//	logger.Info("Process started", "name", name, "pid", pid)
//
// When running under systemd:
//
//	journalctl -t procmux -f
//	journalctl -t procmux MODULE=proc
package logging
