package mp4box

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"mp4forge/internal/config"
	"mp4forge/internal/logging"
	"mp4forge/internal/queue"
	"mp4forge/internal/services"
)

const (
	defaultKillTimeout = 2 * time.Second
	notFoundMessage    = "MP4Box not found - please install MP4Box and add to PATH"
	maxLineBytes       = 1024 * 1024
	progressLogStep    = 10
)

// JobTracker is the slice of the queue manager the executor reports to.
// UpdateStatus reports false when the job already reached a final status.
type JobTracker interface {
	UpdateStatus(ctx context.Context, id string, status queue.Status, errorMessage string) bool
	UpdateProgress(id string, percent float64, stage string)
	IsCancelled(id string) bool
}

// Sink receives per-job outcome callbacks in addition to queue updates.
type Sink interface {
	OnProgress(jobID string, percent float64, stage string)
	OnComplete(jobID, outputFile string)
	OnError(jobID, message string)
}

// NopSink ignores every callback.
type NopSink struct{}

func (NopSink) OnProgress(string, float64, string) {}
func (NopSink) OnComplete(string, string)          {}
func (NopSink) OnError(string, string)             {}

// Executor runs MP4Box for one job at a time per Execute call and tracks the
// running processes so they can be killed by job id.
type Executor struct {
	binary      string
	killTimeout time.Duration
	jobs        JobTracker
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]*run
}

type run struct {
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// New constructs an Executor for binary.
func New(binary string, killTimeout time.Duration, jobs JobTracker, logger *slog.Logger) *Executor {
	if strings.TrimSpace(binary) == "" {
		binary = "MP4Box"
	}
	if killTimeout <= 0 {
		killTimeout = defaultKillTimeout
	}
	return &Executor{
		binary:      binary,
		killTimeout: killTimeout,
		jobs:        jobs,
		logger:      logging.NewComponentLogger(logger, "mp4box"),
		active:      make(map[string]*run),
	}
}

// NewFromConfig builds an Executor from the [mp4box] config section.
func NewFromConfig(cfg *config.Config, jobs JobTracker, logger *slog.Logger) *Executor {
	if cfg == nil {
		return New("", 0, jobs, logger)
	}
	return New(cfg.MP4BoxBinary(), cfg.KillTimeout(), jobs, logger)
}

// Execute muxes job and records the outcome on the queue. A job cancelled
// before or during the mux is left cancelled. The returned error describes a
// failed mux; queue status has already been updated when it is returned,
// except when ctx ends first, in which case the job is left for the caller.
func (e *Executor) Execute(ctx context.Context, job *queue.Job, sink Sink) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "mp4box", "execute", "nil job", nil)
	}
	if sink == nil {
		sink = NopSink{}
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := e.logger.With(logging.JobID(job.ID))

	if e.jobs.IsCancelled(job.ID) || !e.jobs.UpdateStatus(ctx, job.ID, queue.StatusProcessing, "") {
		logger.Info("skipping cancelled job")
		return nil
	}

	chapters := ""
	if job.HasChapters() {
		chapters = job.Chapters.Text
	}

	var outcome error
	err := withChaptersFile(chapters, func(chaptersPath string) error {
		outcome = e.mux(ctx, job, BuildArgs(job, chaptersPath), sink, logger)
		return nil
	})
	if err != nil {
		outcome = e.fail(ctx, job.ID, sink, "Muxing failed: "+err.Error(), err)
	}
	return outcome
}

func (e *Executor) mux(ctx context.Context, job *queue.Job, args []string, sink Sink, logger *slog.Logger) error {
	logger.Info("starting mp4box",
		logging.String("output_file", job.OutputFile),
		logging.Int("audio_tracks", len(job.AudioTracks)),
		logging.Int("subtitle_tracks", len(job.SubtitleTracks)),
	)
	logger.Debug("mp4box command", logging.String("binary", e.binary), logging.Any("args", args))

	reader, writer, err := os.Pipe()
	if err != nil {
		return e.fail(ctx, job.ID, sink, "Muxing failed: "+err.Error(), err)
	}
	defer reader.Close()

	cmd := exec.Command(e.binary, args...) //nolint:gosec
	cmd.Stdout = writer
	cmd.Stderr = writer
	configureCommand(cmd)

	if err := cmd.Start(); err != nil {
		writer.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return e.fail(ctx, job.ID, sink, notFoundMessage, err)
		}
		return e.fail(ctx, job.ID, sink, "Muxing failed: "+err.Error(), err)
	}
	writer.Close()

	r := &run{cmd: cmd, exited: make(chan struct{})}
	go func() {
		r.err = cmd.Wait()
		close(r.exited)
	}()
	e.register(job.ID, r)
	defer func() {
		e.unregister(job.ID)
		e.terminate(r)
	}()
	stopWatch := context.AfterFunc(ctx, func() { e.terminate(r) })
	defer stopWatch()

	tracker := NewProgressTracker(len(job.AudioTracks), len(job.SubtitleTracks))
	sampler := logging.NewProgressSampler(progressLogStep)
	var output []string
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(scanOutputLines)
	for scanner.Scan() {
		if ctx.Err() != nil {
			logger.Info("mux interrupted", logging.String("reason", ctx.Err().Error()))
			e.terminate(r)
			return ctx.Err()
		}
		if e.jobs.IsCancelled(job.ID) {
			logger.Info("mux cancelled")
			e.terminate(r)
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		output = append(output, line)
		if progress, ok := tracker.Feed(line); ok {
			e.jobs.UpdateProgress(job.ID, progress.Percent, progress.Stage)
			sink.OnProgress(job.ID, progress.Percent, progress.Stage)
			if sampler.ShouldLog(progress.Percent, progress.Stage) {
				logger.Info("mux progress",
					logging.String("stage", progress.Stage),
					logging.Int("percent", int(progress.Percent)),
				)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		// Nothing reads the pipe from here on, so MP4Box would block on its
		// next write.
		logger.Warn("mp4box output unreadable", logging.Error(err))
		e.terminate(r)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.jobs.IsCancelled(job.ID) {
			return nil
		}
		return e.fail(ctx, job.ID, sink, "Muxing failed: "+err.Error(), err)
	}
	<-r.exited

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if e.jobs.IsCancelled(job.ID) {
		logger.Info("mux cancelled")
		return nil
	}

	if r.err != nil {
		var exitErr *exec.ExitError
		if errors.As(r.err, &exitErr) {
			details := "Unknown error"
			if len(output) > 0 {
				details = strings.Join(output, "\n")
			}
			message := fmt.Sprintf("MP4Box exited with code %d\n%s", exitErr.ExitCode(), details)
			return e.fail(ctx, job.ID, sink, message, r.err)
		}
		return e.fail(ctx, job.ID, sink, "Muxing failed: "+r.err.Error(), r.err)
	}

	if !e.jobs.UpdateStatus(ctx, job.ID, queue.StatusCompleted, "") {
		logger.Info("mux finished after the job was cancelled")
		return nil
	}
	e.jobs.UpdateProgress(job.ID, 100, "Completed")
	sink.OnComplete(job.ID, job.OutputFile)
	logger.Info("mux completed", logging.String("output_file", job.OutputFile))
	return nil
}

// fail records message on the job. A job cancelled meanwhile stays cancelled
// and fail returns nil.
func (e *Executor) fail(ctx context.Context, jobID string, sink Sink, message string, cause error) error {
	if !e.jobs.UpdateStatus(ctx, jobID, queue.StatusFailed, message) {
		e.logger.Info("mux failed after the job was cancelled", logging.JobID(jobID), logging.Error(cause))
		return nil
	}
	sink.OnError(jobID, message)
	e.logger.Warn("mux failed",
		logging.JobID(jobID),
		logging.String(logging.FieldEventType, "mux_failed"),
		logging.Error(cause),
	)
	return services.Wrap(services.ErrExternalTool, "mp4box", "mux", firstLine(message), cause)
}

func firstLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}
	return message
}

// Kill terminates the mux running for jobID. It reports whether one was
// running.
func (e *Executor) Kill(jobID string) bool {
	e.mu.Lock()
	r, ok := e.active[jobID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.logger.Info("killing mp4box", logging.JobID(jobID))
	e.terminate(r)
	return true
}

// Active lists the job ids with a running MP4Box process.
func (e *Executor) Active() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (e *Executor) register(jobID string, r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[jobID] = r
}

func (e *Executor) unregister(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, jobID)
}

// terminate stops the process tree of r if it is still alive: descendants
// first, then a graceful stop of the group, then a hard kill after the kill
// timeout. Group signals are only sent while MP4Box has not been reaped, so
// its pid cannot have been reused.
func (e *Executor) terminate(r *run) {
	select {
	case <-r.exited:
		return
	default:
	}
	pid := r.cmd.Process.Pid
	killDescendants(pid)
	if err := terminateGroup(pid); err != nil {
		e.logger.Debug("terminate mp4box", logging.Error(err))
	}
	select {
	case <-r.exited:
	case <-time.After(e.killTimeout):
		if err := killGroup(r.cmd); err != nil {
			e.logger.Debug("kill mp4box", logging.Error(err))
		}
		<-r.exited
	}
}
