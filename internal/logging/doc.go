// Package logging provides a simple leveled logging interface for the
// media curator services.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (per-batch progress, skipped entries)
//   - INFO: General operational messages (session transitions)
//   - WARN: Recoverable failures (unreadable files and directories)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=true, and can be overridden at runtime with SetLevel.
package logging
