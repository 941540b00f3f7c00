// Package logging builds log/slog loggers with console and JSON output and
// provides the attribute helpers used throughout scribeq.
package logging
