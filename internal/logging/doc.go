// Package logging provides structured logging with per-module log level configuration.
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout (or Config.Output) when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// Initialize once at startup, then fetch module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"executor": "debug",
//			"output":   "warn",
//		},
//	})
//
//	logger := logging.GetLogger("executor").With("node", node)
//	logger.Info("Process started", "pid", pid)
//
// Loggers fetched before Initialize are cached and have their level updated
// in place, so package-level loggers are safe.
//
// Executor output lines are logged under module "output"; filter them in the
// journal with:
//
//	journalctl -t nodeexec MODULE=output NODE=worker-1
package logging
