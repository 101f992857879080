// Package logging builds the structured slog loggers used across shuttle.
//
// Two output formats are supported: a human-oriented console format for
// interactive runs and JSON for log collection. Helper constructors mirror
// the slog attr functions so call sites stay terse.
package logging
