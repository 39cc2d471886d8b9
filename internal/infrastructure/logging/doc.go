// Package logging provides structured logging for plcbridge.
//
// This package wraps Go's standard log/slog package so every component
// (poll loop, bus adapters, trigger client) logs with the same fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for a terminal
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("monitor").Info("poll loop started", "interval", cfg.Interval())
//
// Never log broker passwords or the InfluxDB token.
package logging
