// Package language normalizes the language values attached to mux tracks.
//
// Submitted jobs may name a language by ISO 639-1 or 639-2 code, BCP 47 tag,
// or English name. Normalize folds all of them to the ISO 639-2/T code MP4Box
// expects, and DisplayName turns a code back into a readable name for the CLI.
package language
