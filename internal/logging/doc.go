// Package logging builds the slog loggers used by the daemon and CLI.
//
// The console handler prints the component and a short job id ahead of each
// message; the JSON handler emits ts/level/msg keys for log shippers. Helpers
// here keep warning lines uniform (event_type, error_hint, impact) and thin
// out MP4Box progress so a mux logs a handful of lines rather than hundreds.
package logging
