// Command mp4forge is the command-line client for the mp4forged daemon.
//
// Queue commands (add, list, show, cancel, remove, clear, start, stop) and
// the event follower talk to the daemon over its HTTP API. The start, stop,
// and restart commands manage the daemon process itself; config and deps
// work without a running daemon.
package main
