// Package config loads, normalizes, and validates mp4forge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and resolves the MP4Box executable when the
// file leaves it unset. A file written by an incompatible release is moved
// aside to a versioned backup and defaults are used in its place.
//
// Setting PORTABLE_MODE keeps the config file and all state next to the
// running executable instead of the user's config and data directories.
package config
