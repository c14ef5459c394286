// Package logging provides structured logging for the cranelink gateway.
//
// This package wraps the standard library's log/slog with:
//   - Configuration-driven output format (JSON or text)
//   - Level filtering (debug, info, warn, error)
//   - Default fields on every record (service, version)
//
// The gateway runs headless; JSON output to stdout is the default so a
// supervisor (systemd, container runtime) can collect and ship records.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("bridge started", "device", cfg.Device.ID)
package logging
