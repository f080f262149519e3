// Package apiclient talks to the mp4forged HTTP API on behalf of the CLI.
//
// Server errors come back as *APIError values that unwrap to the matching
// services marker, so callers can use errors.Is(err, services.ErrNotFound)
// exactly as they would against the in-process api.Service. Events follows
// the daemon's Server-Sent Events stream until the context ends.
package apiclient
