package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"mp4forge/internal/logging"
	"mp4forge/internal/queue"
	"mp4forge/internal/services"
)

func (p *Processor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.finish(done)

	for {
		if ctx.Err() != nil {
			return
		}
		job, ok := p.nextJob(done)
		if !ok {
			return
		}
		p.process(ctx, job)
	}
}

// nextJob returns the head of the queue. When the queue is empty it marks the
// loop stopped under the processor lock, so a Wake racing with the drain
// either sees the loop running and has its job picked up here, or sees it
// stopped and starts a new loop.
func (p *Processor) nextJob(done chan struct{}) (*queue.Job, bool) {
	if job, ok := p.queue.NextQueued(); ok {
		return job, true
	}
	p.mu.Lock()
	if job, ok := p.queue.NextQueued(); ok {
		p.mu.Unlock()
		return job, true
	}
	p.releaseLocked(done)
	p.mu.Unlock()

	p.logger.Info("queue drained", logging.String(logging.FieldEventType, "queue_completed"))
	p.queue.NotifyQueueCompleted()
	return nil, false
}

func (p *Processor) finish(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked(done)
}

func (p *Processor) releaseLocked(done chan struct{}) {
	if p.done != done || !p.running {
		return
	}
	p.running = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Processor) process(ctx context.Context, job *queue.Job) {
	p.setCurrent(job)
	defer p.setCurrent(nil)

	logger := p.logger.With(logging.JobID(job.ID))
	err := p.execute(ctx, job)
	updateCtx := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		if current, ok := p.queue.GetJob(job.ID); ok && current.Status == queue.StatusProcessing {
			p.queue.UpdateStatus(updateCtx, job.ID, queue.StatusQueued, "")
			logger.Info("interrupted job returned to queue")
		}
		return
	}

	current, ok := p.queue.GetJob(job.ID)
	if !ok {
		logger.Info("job removed while processing")
		return
	}

	if err != nil {
		p.setLastError(err)
		if !current.Status.IsTerminal() {
			p.queue.UpdateStatus(updateCtx, job.ID, queue.StatusFailed, failureMessage(err))
		}
		p.recordOutcome(queue.StatusFailed)
		logger.Error("job failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, "see the job's error message for MP4Box output"),
		)
		return
	}

	if !current.Status.IsTerminal() {
		logging.WarnWithContext(logger, "muxer returned without a final status; marking completed", "job_status_forced",
			logging.String("status", string(current.Status)),
			logging.String(logging.FieldImpact, "job reported as completed"),
		)
		p.queue.UpdateStatus(updateCtx, job.ID, queue.StatusCompleted, "")
		current.Status = queue.StatusCompleted
	}
	p.recordOutcome(current.Status)
}

func (p *Processor) execute(ctx context.Context, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mux panicked: %v", r)
			p.logger.Error("mux panicked",
				logging.JobID(job.ID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	return p.muxer.Execute(ctx, job, p)
}

func failureMessage(err error) string {
	if errors.Is(err, services.ErrExternalTool) || errors.Is(err, services.ErrValidation) {
		return strings.TrimSpace(services.Detail(err))
	}
	return strings.TrimSpace(err.Error())
}
