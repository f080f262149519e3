package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"mp4forge/internal/config"
)

const userAgent = "mp4forge/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventJobCompleted   Event = "job_completed"
	EventJobFailed      Event = "job_failed"
	EventQueueCompleted Event = "queue_completed"
	EventTest           Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted:   cfg.Notifications.OnComplete,
			EventJobFailed:      cfg.Notifications.OnFailure,
			EventQueueCompleted: cfg.Notifications.OnQueueCompleted,
			EventTest:           true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventJobCompleted:
		return payload{
			title:   "mp4forge - Mux Complete",
			message: fmt.Sprintf("✅ Muxed: %s", outputName(data)),
			tags:    []string{"mp4forge", "mux", "completed"},
		}, true
	case EventJobFailed:
		errText := firstLine(stringValue(data, "error"))
		if errText == "" {
			errText = "unknown error"
		}
		return payload{
			title:    "mp4forge - Mux Failed",
			message:  fmt.Sprintf("❌ %s: %s", outputName(data), errText),
			tags:     []string{"mp4forge", "mux", "failed"},
			priority: "high",
		}, true
	case EventQueueCompleted:
		processed := intValue(data, "processed")
		failed := intValue(data, "failed")
		duration := durationValue(data, "duration").Round(time.Second)
		if failed == 0 {
			return payload{
				title:   "mp4forge - Queue Complete",
				message: fmt.Sprintf("Queue complete: %d jobs muxed in %s", processed, duration),
				tags:    []string{"mp4forge", "queue", "completed"},
			}, true
		}
		return payload{
			title:   "mp4forge - Queue Complete (with errors)",
			message: fmt.Sprintf("Queue complete: %d succeeded, %d failed in %s", processed, failed, duration),
			tags:    []string{"mp4forge", "queue", "completed"},
		}, true
	case EventTest:
		return payload{
			title:    "mp4forge - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"mp4forge", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func outputName(data Payload) string {
	out := stringValue(data, "outputFile")
	if out == "" {
		return "job " + stringValue(data, "jobID")
	}
	return filepath.Base(out)
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

func stringValue(data Payload, key string) string {
	if v, ok := data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intValue(data Payload, key string) int {
	if v, ok := data[key].(int); ok {
		return v
	}
	return 0
}

func durationValue(data Payload, key string) time.Duration {
	if v, ok := data[key].(time.Duration); ok && v > 0 {
		return v
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
