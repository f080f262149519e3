// Package services defines shared utilities consumed by the muxer, the queue
// processor, and the API layer.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (validation vs not found vs external tool).
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon.
package services
