package queue

import (
	"context"
	"log/slog"

	"mp4forge/internal/logging"
)

// Observer receives queue change notifications. Implementations are
// registered by pointer so UnregisterObserver can find them again.
type Observer interface {
	OnJobAdded(job *Job)
	OnJobStatusChanged(job *Job)
	OnJobProgress(jobID string, percent float64, stage string)
	OnQueueCompleted()
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the events you care about.
type NopObserver struct{}

func (NopObserver) OnJobAdded(*Job)                       {}
func (NopObserver) OnJobStatusChanged(*Job)               {}
func (NopObserver) OnJobProgress(string, float64, string) {}
func (NopObserver) OnQueueCompleted()                     {}

const defaultDispatchBuffer = 256

// Dispatcher forwards events to a target observer on its own goroutine so
// the muxer's worker never runs observer code inline. Progress events are
// dropped when the buffer is full; every other event waits for space.
type Dispatcher struct {
	target Observer
	events chan func()
	done   chan struct{}
	logger *slog.Logger
}

// NewDispatcher wraps target. Call Run to start delivery.
func NewDispatcher(target Observer, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultDispatchBuffer
	}
	return &Dispatcher{
		target: target,
		events: make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logging.NewComponentLogger(logger, "dispatcher"),
	}
}

// Run delivers queued events until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.events:
			d.deliver(fn)
		}
	}
}

func (d *Dispatcher) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked", logging.Any("panic", r))
		}
	}()
	fn()
}

func (d *Dispatcher) post(fn func()) {
	select {
	case d.events <- fn:
	case <-d.done:
	}
}

func (d *Dispatcher) OnJobAdded(job *Job) {
	d.post(func() { d.target.OnJobAdded(job) })
}

func (d *Dispatcher) OnJobStatusChanged(job *Job) {
	d.post(func() { d.target.OnJobStatusChanged(job) })
}

func (d *Dispatcher) OnJobProgress(jobID string, percent float64, stage string) {
	select {
	case d.events <- func() { d.target.OnJobProgress(jobID, percent, stage) }:
	default:
	}
}

func (d *Dispatcher) OnQueueCompleted() {
	d.post(d.target.OnQueueCompleted)
}
