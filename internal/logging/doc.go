// Package logging provides structured logging for the wifiportal daemon.
//
// This package wraps a zap logger with convenience functions for common logging
// patterns used by the provisioning stack.
//
// # Log Levels
//
//   - Debug: DNS answers, queue activity, radio driver command lines
//   - Info: joins, mode transitions, portal start/stop, credential saves
//   - Warn: recovered failures (static IP fallback, persistence failure, mDNS)
//   - Error: storage mount failure, listener failures
//
// # Structured Logging
//
//	logging.Info("Portal active",
//	    zap.String("ap", "EasyWiFi setup"),
//	    zap.String("address", "192.168.4.1"),
//	)
//
// Domain helpers:
//
//	logging.LogTransition("stationed", "provisioning", "all credentials exhausted")
//	logging.LogJoin(ssid, attempt, "connected")
//	logging.LogHTTPRequest(remoteAddr, r.Method, r.URL.Path, status)
//	logging.LogDNSQuery(remoteAddr, name, "A", "192.168.4.1")
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// InitializeWithFormat(level, logging.FormatJSON) emits one JSON object per
// line for journald or a log shipper.
//
// When no level is given and WIFIPORTAL_LOG_LEVEL is unset the logger is a
// no-op, so library users and CLI subcommands stay quiet by default.
package logging
