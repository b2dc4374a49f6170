// Package logging constructs the slog loggers used across the Safespace
// node. It supports console and JSON output, per-config log levels, file
// mirroring under the configured log directory, and typed attribute
// helpers so call sites stay consistent.
package logging
