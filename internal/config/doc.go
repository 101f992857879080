// Package config loads, normalizes, and validates the shuttle configuration.
//
// Configuration lives in a TOML file. Load applies repository defaults,
// expands every path field, and rejects unusable settings before any queue
// item is touched.
package config
