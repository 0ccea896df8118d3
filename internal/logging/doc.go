// Package logging provides structured logging for the bot client.
//
// This package wraps a global zap logger with convenience functions used
// throughout the client. Library code logs through it unconditionally;
// the logger is a no-op until the CLI (or a host application) initializes it.
//
// # Log Levels
//
//   - Debug: Raw frames, clock offsets, tick scheduling
//   - Info: Connections, authentication, subscriptions
//   - Warn: Dropped or malformed envelopes, send failures, reconnects
//   - Error: Server-reported errors, bootstrap failures
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When the level is empty, BOTCLIENT_LOG_LEVEL is consulted. Neither set
// means silent mode.
//
// A rotating JSON log file can be added next to console output:
//
//	logging.InitializeWithOptions(logging.Options{
//	    Level:     "info",
//	    FilePath:  "/var/log/botclient.log",
//	    MaxSizeMB: 50,
//	})
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once initialized.
// Initialize itself is meant to be called once before any goroutines start.
package logging
