// Package logging provides structured logging for the gemd server.
//
// This package wraps a global zap logger with convenience functions for the
// events the server emits: connection lifecycle, TLS handshake parameters,
// Gemini requests and responses, and raw byte dumps of rejected input.
//
// # Log Levels
//
//   - Debug: Raw request bytes, per-chunk transfer sizes, clean peer closures
//   - Info: Connections, handshakes, requests, responses
//   - Warn: Rejected requests, recovered panics
//   - Error: Handshake faults, transport faults, startup failures
//
// # Configuration
//
// Initialize logging at server startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to the GEMD_LOG_LEVEL environment variable; if
// that is also empty the logger is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// must be called before connections are accepted.
package logging
