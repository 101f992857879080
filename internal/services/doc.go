// Package services holds shared helpers for the external collaborators the
// pipeline talks to: error classification markers and the wrapping scheme the
// orchestrator uses to decide how an item failure is handled.
package services
