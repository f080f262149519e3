package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mp4forge/internal/queue"
	"mp4forge/internal/services"
	"mp4forge/internal/workflow"
)

// ErrNoJobsQueued is returned by StartProcessing when the queue is empty.
var ErrNoJobsQueued = errors.New("no jobs queued")

// Processor is the slice of workflow.Processor the API drives.
type Processor interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
	CancelJob(ctx context.Context, id string) bool
	Status() workflow.StatusSummary
}

// Service implements the queue API on top of the queue manager and processor.
type Service struct {
	queue     *queue.Manager
	processor Processor
}

// NewService constructs a Service.
func NewService(mgr *queue.Manager, processor Processor) *Service {
	return &Service{queue: mgr, processor: processor}
}

// AddJob validates req and appends it to the queue.
func (s *Service) AddJob(ctx context.Context, req AddJobRequest) (Job, error) {
	job, err := ToQueueJob(req)
	if err != nil {
		return Job{}, err
	}
	id, err := s.queue.AddJob(ctx, job)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %w", services.ErrConflict, err)
	}
	return s.GetJob(id)
}

// GetJob returns one job.
func (s *Service) GetJob(id string) (Job, error) {
	job, ok := s.queue.GetJob(strings.TrimSpace(id))
	if !ok {
		return Job{}, notFound(id)
	}
	return FromJob(job), nil
}

// ListJobs returns all jobs in queue order, or only those in status when it
// is set.
func (s *Service) ListJobs(status string) ([]Job, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return FromJobs(s.queue.GetAllJobs()), nil
	}
	parsed, ok := queue.ParseStatus(status)
	if !ok {
		return nil, clientError(services.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}
	if parsed == queue.StatusQueued {
		return s.ListQueued(), nil
	}
	var out []Job
	for _, job := range s.queue.GetAllJobs() {
		if job.Status == parsed {
			out = append(out, FromJob(job))
		}
	}
	if out == nil {
		out = []Job{}
	}
	return out, nil
}

// ListQueued returns the jobs waiting to be muxed, in processing order.
func (s *Service) ListQueued() []Job {
	return FromJobs(s.queue.GetQueuedJobs())
}

// CancelJob cancels a queued or processing job. Cancelling a finished job
// leaves it unchanged and is not an error.
func (s *Service) CancelJob(ctx context.Context, id string) (Job, error) {
	if _, ok := s.queue.GetJob(id); !ok {
		return Job{}, notFound(id)
	}
	s.processor.CancelJob(ctx, id)
	return s.GetJob(id)
}

// RemoveJob deletes a job. A processing job is cancelled first so its mux
// stops.
func (s *Service) RemoveJob(ctx context.Context, id string) error {
	job, ok := s.queue.GetJob(id)
	if !ok {
		return notFound(id)
	}
	if job.Status == queue.StatusProcessing {
		s.processor.CancelJob(ctx, id)
	}
	if !s.queue.RemoveJob(ctx, id) {
		return notFound(id)
	}
	return nil
}

// ClearCompleted removes every finished job.
func (s *Service) ClearCompleted(ctx context.Context) int {
	return s.queue.ClearCompleted(ctx)
}

// StartProcessing starts the processor. It fails when nothing is queued.
func (s *Service) StartProcessing(ctx context.Context) (QueueStatus, error) {
	if _, ok := s.queue.NextQueued(); !ok {
		return s.QueueStatus(), fmt.Errorf("%w: %w", services.ErrConflict, ErrNoJobsQueued)
	}
	if err := s.processor.Start(ctx); err != nil {
		return s.QueueStatus(), err
	}
	return s.QueueStatus(), nil
}

// StopProcessing stops the processor.
func (s *Service) StopProcessing() (QueueStatus, error) {
	err := s.processor.Stop()
	return s.QueueStatus(), err
}

// QueueStatus reports queue counts and processor state.
func (s *Service) QueueStatus() QueueStatus {
	stats := s.queue.Stats()
	total := 0
	for _, n := range stats {
		total += n
	}
	summary := s.processor.Status()
	return QueueStatus{
		Running:     s.processor.Running(),
		QueuedCount: stats[queue.StatusQueued],
		TotalCount:  total,
		CurrentJob:  summary.CurrentJob,
		Counts:      MergeQueueStats(stats),
	}
}

// ProcessorStatus reports the processor summary.
func (s *Service) ProcessorStatus() ProcessorStatus {
	return FromStatusSummary(s.processor.Status())
}

func notFound(id string) error {
	return clientError(services.ErrNotFound, fmt.Sprintf("job %q not found", id))
}

// clientError tags message with marker without a component prefix, so
// services.Detail yields message alone.
func clientError(marker error, message string) error {
	return services.Wrap(marker, "", "", message, nil)
}
