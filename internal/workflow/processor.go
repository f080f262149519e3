package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mp4forge/internal/config"
	"mp4forge/internal/logging"
	"mp4forge/internal/mp4box"
	"mp4forge/internal/queue"
	"mp4forge/internal/services"
)

const defaultStopTimeout = 30 * time.Second

// Muxer runs one job to completion and can kill a running job.
// *mp4box.Executor implements it.
type Muxer interface {
	Execute(ctx context.Context, job *queue.Job, sink mp4box.Sink) error
	Kill(jobID string) bool
}

// Processor drives the queue one job at a time.
type Processor struct {
	queue       *queue.Manager
	muxer       Muxer
	logger      *slog.Logger
	stopTimeout time.Duration
	autoStart   bool

	mu         sync.Mutex
	parent     context.Context
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	current    string
	lastErr    error
	lastJob    *queue.Job
	lastOutput string
	completed  int
	failed     int
}

// NewProcessor builds a Processor. With queue.auto_start enabled it
// registers itself to wake when jobs are added.
func NewProcessor(cfg *config.Config, mgr *queue.Manager, muxer Muxer, logger *slog.Logger) *Processor {
	p := &Processor{
		queue:       mgr,
		muxer:       muxer,
		logger:      logging.NewComponentLogger(logger, "processor"),
		stopTimeout: defaultStopTimeout,
		parent:      context.Background(),
	}
	if cfg != nil {
		if timeout := cfg.StopTimeout(); timeout > 0 {
			p.stopTimeout = timeout
		}
		p.autoStart = cfg.Queue.AutoStart
	}
	if p.autoStart {
		mgr.RegisterObserver(&autoStarter{processor: p})
	}
	return p
}

// Start launches the processing loop. It is a no-op when the loop is already
// running. The loop outlives ctx; call Stop to end it early.
func (p *Processor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.queue == nil || p.muxer == nil {
		return services.Wrap(services.ErrConfiguration, "processor", "start", "queue and muxer required", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = ctx
	if p.running {
		p.logger.Info("queue processor already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	p.running = true
	p.cancel = cancel
	p.done = done
	go p.run(runCtx, done)

	p.logger.Info("queue processor started", logging.String(logging.FieldEventType, "processor_started"))
	return nil
}

// Stop interrupts the loop, kills the in-flight mux, and waits up to the
// configured stop timeout for the loop to exit.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	done := p.done
	current := p.current
	p.mu.Unlock()

	cancel()
	if current != "" {
		p.muxer.Kill(current)
	}

	select {
	case <-done:
		p.logger.Info("queue processor stopped", logging.String(logging.FieldEventType, "processor_stopped"))
		return nil
	case <-time.After(p.stopTimeout):
		logging.WarnWithContext(p.logger, "queue processor did not stop in time", "processor_stop_timeout",
			logging.JobID(current),
			logging.Duration("timeout", p.stopTimeout),
			logging.String(logging.FieldErrorHint, "MP4Box may be stuck; check for orphaned processes"),
			logging.String(logging.FieldImpact, "the loop exits once the current mux returns"),
		)
		return services.Wrap(services.ErrTimeout, "processor", "stop", fmt.Sprintf("loop still running after %s", p.stopTimeout), nil)
	}
}

// Running reports whether the loop is active.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// CancelJob cancels id in the queue and kills its mux if one is running.
func (p *Processor) CancelJob(ctx context.Context, id string) bool {
	if !p.queue.CancelJob(ctx, id) {
		return false
	}
	if p.muxer.Kill(id) {
		p.logger.Info("killed running mux for cancelled job", logging.JobID(id))
	}
	return true
}

// Wake starts the loop when auto start is enabled, the loop is idle, and
// jobs are waiting.
func (p *Processor) Wake() {
	if !p.autoStart {
		return
	}
	p.mu.Lock()
	running := p.running
	parent := p.parent
	p.mu.Unlock()
	if running {
		return
	}
	if _, ok := p.queue.NextQueued(); !ok {
		return
	}
	if err := p.Start(parent); err != nil {
		p.logger.Warn("auto start failed", logging.Error(err))
	}
}

type autoStarter struct {
	queue.NopObserver
	processor *Processor
}

func (a *autoStarter) OnJobAdded(*queue.Job) {
	a.processor.Wake()
}
