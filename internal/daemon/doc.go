// Package daemon coordinates the long-running mp4forged process.
//
// It wires configuration, the queue manager and its SQLite mirror, the MP4Box
// executor, the queue processor, event fan-out, and notifications into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The HTTP API (chi router, bearer token auth, SSE event stream) lives here
// too, along with the optional cron job that clears finished jobs.
//
// Keep orchestration logic here: muxing and queue rules belong to their own
// packages while the daemon focuses on startup, shutdown, and transport.
package daemon
