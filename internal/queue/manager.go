package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"mp4forge/internal/logging"
)

// Persister is the durable mirror behind a Manager. *Store implements it.
type Persister interface {
	SaveJob(ctx context.Context, job *Job, position int) error
	LoadAllJobs(ctx context.Context) ([]*Job, error)
	DeleteJob(ctx context.Context, id string) error
	DeleteCompletedJobs(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
	RewritePositions(ctx context.Context, ids []string) error
}

// Manager is the single authority for the job set and its order.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	order     []string
	observers []Observer
	pending   []notification
	flushing  bool

	store  Persister
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// NewManager builds a Manager. A nil store keeps jobs in memory only.
func NewManager(store Persister, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		jobs:   make(map[string]*Job),
		store:  store,
		logger: logging.NewComponentLogger(logger, "queue"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadFromStore replaces the in-memory job set with the persisted one.
// Progress always reloads as zero, and jobs interrupted mid-mux are queued again.
func (m *Manager) LoadFromStore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	jobs, err := m.store.LoadAllJobs(ctx)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs = make(map[string]*Job, len(jobs))
	m.order = m.order[:0]
	for _, job := range jobs {
		if _, dup := m.jobs[job.ID]; dup {
			continue
		}
		job.Progress = 0
		job.ProgressStage = ""
		m.jobs[job.ID] = job
		m.order = append(m.order, job.ID)
		if job.Status == StatusProcessing {
			job.Status = StatusQueued
			m.persistLocked(ctx, job, len(m.order)-1)
			m.logger.Info("requeued interrupted job", logging.JobID(job.ID))
		}
	}
	m.rewritePositionsLocked(ctx)
	return len(m.order), nil
}

// AddJob appends job to the queue as queued and returns its id.
func (m *Manager) AddJob(ctx context.Context, job *Job) (string, error) {
	if job == nil {
		return "", fmt.Errorf("add job: nil job")
	}
	stored := job.Clone()
	if stored.ID == "" {
		stored.ID = m.newID()
	}
	stored.Status = StatusQueued
	stored.Progress = 0
	stored.ProgressStage = ""
	stored.ErrorMessage = ""
	stored.StartedAt = nil
	stored.CompletedAt = nil
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}

	m.mu.Lock()
	if _, exists := m.jobs[stored.ID]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateJob, stored.ID)
	}
	m.jobs[stored.ID] = stored
	m.order = append(m.order, stored.ID)
	m.persistLocked(ctx, stored, len(m.order)-1)
	snapshot := stored.Clone()
	m.enqueueLocked(func(o Observer) { o.OnJobAdded(snapshot.Clone()) })
	m.mu.Unlock()

	m.logger.Info("job added",
		logging.JobID(snapshot.ID),
		logging.String("output_file", snapshot.OutputFile),
		logging.Int("audio_tracks", len(snapshot.AudioTracks)),
		logging.Int("subtitle_tracks", len(snapshot.SubtitleTracks)),
	)
	m.flush()
	return snapshot.ID, nil
}

// GetJob returns a copy of the job with id.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// GetAllJobs returns copies of every job in queue order.
func (m *Manager) GetAllJobs() []*Job {
	return m.filter(func(*Job) bool { return true })
}

// GetQueuedJobs returns copies of the queued jobs in queue order.
func (m *Manager) GetQueuedJobs() []*Job {
	return m.filter(func(j *Job) bool { return j.Status == StatusQueued })
}

// NextQueued returns the head of the queued set.
func (m *Manager) NextQueued() (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if job := m.jobs[id]; job.Status == StatusQueued {
			return job.Clone(), true
		}
	}
	return nil, false
}

func (m *Manager) filter(keep func(*Job) bool) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		if job := m.jobs[id]; keep(job) {
			out = append(out, job.Clone())
		}
	}
	return out
}

// Stats counts jobs per status.
func (m *Manager) Stats() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[Status]int, len(allStatuses))
	for _, job := range m.jobs {
		stats[job.Status]++
	}
	return stats
}

// IsCancelled reports whether the job has been cancelled. Unknown ids count as
// cancelled so a removed job stops being muxed.
func (m *Manager) IsCancelled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	return !ok || job.Status == StatusCancelled
}

// UpdateStatus moves a job to status and reports whether it did. Entering
// processing stamps StartedAt once; entering a terminal status stamps
// CompletedAt. Unknown ids and jobs already in a terminal status are left
// untouched.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status Status, errorMessage string) bool {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok || job.Status.IsTerminal() {
		m.mu.Unlock()
		return false
	}
	snapshot := m.applyStatusLocked(ctx, job, status, errorMessage)
	m.mu.Unlock()

	m.logStatus(snapshot)
	m.flush()
	return true
}

func (m *Manager) applyStatusLocked(ctx context.Context, job *Job, status Status, errorMessage string) *Job {
	now := m.now()
	job.Status = status
	job.ErrorMessage = errorMessage
	if status == StatusProcessing && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.IsTerminal() {
		job.CompletedAt = &now
	}
	m.persistLocked(ctx, job, slices.Index(m.order, job.ID))
	snapshot := job.Clone()
	m.enqueueLocked(func(o Observer) { o.OnJobStatusChanged(snapshot.Clone()) })
	return snapshot
}

func (m *Manager) logStatus(job *Job) {
	attrs := []logging.Attr{
		logging.JobID(job.ID),
		logging.String("status", string(job.Status)),
	}
	if job.Status == StatusFailed {
		attrs = append(attrs, logging.String(logging.FieldEventType, "job_failed"), logging.String("error_message", job.ErrorMessage))
		m.logger.Warn("job status changed", logging.Args(attrs...)...)
		return
	}
	m.logger.Info("job status changed", logging.Args(attrs...)...)
}

// UpdateProgress records transient progress. It is never persisted.
func (m *Manager) UpdateProgress(id string, percent float64, stage string) {
	percent = min(max(percent, 0), 100)

	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	job.Progress = percent
	job.ProgressStage = stage
	m.enqueueLocked(func(o Observer) { o.OnJobProgress(id, percent, stage) })
	m.mu.Unlock()

	m.flush()
}

// CancelJob cancels a queued or processing job. It reports whether the job
// was cancelled; terminal and unknown jobs are left untouched.
func (m *Manager) CancelJob(ctx context.Context, id string) bool {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok || !job.Status.Cancellable() {
		m.mu.Unlock()
		return false
	}
	snapshot := m.applyStatusLocked(ctx, job, StatusCancelled, "")
	m.mu.Unlock()

	m.logStatus(snapshot)
	m.flush()
	return true
}

// RemoveJob deletes a job from memory and the store.
func (m *Manager) RemoveJob(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return false
	}
	delete(m.jobs, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	if m.store != nil {
		if err := m.store.DeleteJob(ctx, id); err != nil {
			m.warnPersistence("delete job", err, id)
		}
		m.rewritePositionsLocked(ctx)
	}
	m.logger.Info("job removed", logging.JobID(id))
	return true
}

// ClearCompleted removes every completed, failed, or cancelled job and
// returns how many were removed.
func (m *Manager) ClearCompleted(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	m.order = slices.DeleteFunc(m.order, func(id string) bool {
		if m.jobs[id].Status.IsTerminal() {
			delete(m.jobs, id)
			removed++
			return true
		}
		return false
	})
	if removed == 0 {
		return 0
	}
	if m.store != nil {
		if _, err := m.store.DeleteCompletedJobs(ctx); err != nil {
			m.warnPersistence("delete completed jobs", err, "")
		}
		m.rewritePositionsLocked(ctx)
	}
	m.logger.Info("cleared finished jobs", logging.Int("removed", removed))
	return removed
}

// RegisterObserver adds o to the notification fan-out.
func (m *Manager) RegisterObserver(o Observer) {
	if o == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// UnregisterObserver removes o from the notification fan-out.
func (m *Manager) UnregisterObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = slices.DeleteFunc(m.observers, func(existing Observer) bool { return existing == o })
}

// NotifyQueueCompleted tells observers the processor drained the queue.
func (m *Manager) NotifyQueueCompleted() {
	m.mu.Lock()
	m.enqueueLocked(func(o Observer) { o.OnQueueCompleted() })
	m.mu.Unlock()
	m.flush()
}

type notification struct {
	observers []Observer
	fn        func(Observer)
}

// enqueueLocked records a callback for the current observers. Callbacks are
// queued in the order changes are applied, so every observer sees a job's
// changes in that order.
func (m *Manager) enqueueLocked(fn func(Observer)) {
	if len(m.observers) == 0 {
		return
	}
	m.pending = append(m.pending, notification{observers: slices.Clone(m.observers), fn: fn})
}

// flush delivers queued callbacks unless another call is already doing so.
// A change made from inside a callback is queued and delivered once that
// callback returns.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.flushing {
		m.mu.Unlock()
		return
	}
	m.flushing = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		for _, n := range batch {
			for _, o := range n.observers {
				m.safeNotify(o, n.fn)
			}
		}
		m.mu.Lock()
	}
	m.flushing = false
	m.mu.Unlock()
}

func (m *Manager) safeNotify(o Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("observer panicked", logging.Any("panic", r))
		}
	}()
	fn(o)
}

func (m *Manager) persistLocked(ctx context.Context, job *Job, position int) {
	if m.store == nil || position < 0 {
		return
	}
	if err := m.store.SaveJob(ctx, job, position); err != nil {
		m.warnPersistence("save job", err, job.ID)
	}
}

func (m *Manager) rewritePositionsLocked(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.RewritePositions(ctx, slices.Clone(m.order)); err != nil {
		m.warnPersistence("rewrite positions", err, "")
	}
}

func (m *Manager) warnPersistence(op string, err error, jobID string) {
	attrs := []logging.Attr{
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check disk space and permissions on the queue database"),
		logging.String(logging.FieldImpact, "queue changes are kept in memory only until the next successful write"),
	}
	if jobID != "" {
		attrs = append(attrs, logging.JobID(jobID))
	}
	logging.WarnWithContext(m.logger, "queue persistence failed", "persistence_degraded", attrs...)
}
