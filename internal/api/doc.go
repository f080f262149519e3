// Package api defines the wire-format types and the transport-free service
// behind the daemon's HTTP API.
//
// # Key Types
//
// AddJobRequest: submission payload (video, audio and subtitle tracks,
// chapters, output path). ToQueueJob normalizes languages and validates it.
//
// Job: transport representation of a queue job with progress, timestamps and
// display language names.
//
// QueueStatus / ProcessorStatus / DaemonStatus: runtime summaries.
//
// # Service
//
// Service maps the queue operations (add, get, list, cancel, remove, clear,
// start, stop, status) onto the queue manager and processor, returning DTOs
// and errors classified with the services markers so the HTTP layer can pick
// status codes.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are lowercase strings. Timestamps
// use RFC3339 with milliseconds.
package api
