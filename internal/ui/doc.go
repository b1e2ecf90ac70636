// Package ui renders terminal output for the wifiportal CLI.
//
// Most commands print once and exit through a Printer: a header box naming
// the command and its parameters, then a success, warning or failure box.
// Scan results are printed as a table sorted by signal strength.
//
// The watch command is the one interactive view. WatchModel is a Bubble Tea
// model that streams events from a daemon's status server until the user
// quits or the connection closes.
//
// Zap logging is silent unless WIFIPORTAL_LOG_LEVEL is set, so this output
// is not interleaved with log lines by default.
package ui
