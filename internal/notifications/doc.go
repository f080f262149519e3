// Package notifications delivers queue events via ntfy.
//
// NewService publishes to the ntfy topic URL configured in config.toml and
// degrades to a no-op when no topic is set. Per-event toggles
// (on_complete, on_failure, on_queue_completed) suppress individual events.
// Observer adapts a Service to queue.Observer so the daemon can register it
// with the queue manager.
package notifications
