package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mp4forge/internal/logging"
	"mp4forge/internal/queue"
)

// Observer publishes job outcomes and queue completion. It tallies results
// between queue drains so the queue summary covers one processing run.
type Observer struct {
	queue.NopObserver

	svc     Service
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	started   time.Time
	completed int
	failed    int
}

// NewObserver wraps svc. Each publish is bounded by timeout.
func NewObserver(svc Service, timeout time.Duration, logger *slog.Logger) *Observer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Observer{
		svc:     svc,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		now:     time.Now,
	}
}

func (o *Observer) OnJobStatusChanged(job *queue.Job) {
	o.mu.Lock()
	switch job.Status {
	case queue.StatusProcessing:
		if o.started.IsZero() {
			o.started = o.now()
		}
		o.mu.Unlock()
		return
	case queue.StatusCompleted:
		o.completed++
	case queue.StatusFailed:
		o.failed++
	default:
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	event := EventJobCompleted
	if job.Status == queue.StatusFailed {
		event = EventJobFailed
	}
	o.publish(event, Payload{
		"jobID":      job.ID,
		"outputFile": job.OutputFile,
		"error":      job.ErrorMessage,
	})
}

func (o *Observer) OnQueueCompleted() {
	o.mu.Lock()
	completed, failed := o.completed, o.failed
	var duration time.Duration
	if !o.started.IsZero() {
		duration = o.now().Sub(o.started)
	}
	o.started = time.Time{}
	o.completed, o.failed = 0, 0
	o.mu.Unlock()

	if completed+failed == 0 {
		return
	}
	o.publish(EventQueueCompleted, Payload{
		"processed": completed,
		"failed":    failed,
		"duration":  duration,
	})
}

func (o *Observer) publish(event Event, payload Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(o.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "queue processing continues without this notification"),
		)
	}
}
