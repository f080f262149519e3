package workflow

import (
	"mp4forge/internal/logging"
	"mp4forge/internal/queue"
)

// StatusSummary is a point-in-time view of the processor.
type StatusSummary struct {
	Running    bool
	CurrentJob string
	LastJob    *queue.Job
	LastError  string
	LastOutput string
	Completed  int
	Failed     int
	QueueStats map[queue.Status]int
}

// Status returns the latest processor information.
func (p *Processor) Status() StatusSummary {
	p.mu.Lock()
	summary := StatusSummary{
		Running:    p.running,
		CurrentJob: p.current,
		LastOutput: p.lastOutput,
		Completed:  p.completed,
		Failed:     p.failed,
	}
	if p.lastErr != nil {
		summary.LastError = p.lastErr.Error()
	}
	if p.lastJob != nil {
		summary.LastJob = p.lastJob.Clone()
	}
	p.mu.Unlock()

	summary.QueueStats = p.queue.Stats()
	return summary
}

func (p *Processor) setCurrent(job *queue.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job == nil {
		p.current = ""
		return
	}
	p.current = job.ID
	p.lastJob = job.Clone()
}

func (p *Processor) setLastError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

func (p *Processor) recordOutcome(status queue.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch status {
	case queue.StatusCompleted:
		p.completed++
	case queue.StatusFailed:
		p.failed++
	}
}

// OnProgress, OnComplete and OnError make the processor the muxer's sink.

func (p *Processor) OnProgress(string, float64, string) {}

func (p *Processor) OnComplete(_ string, outputFile string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastOutput = outputFile
}

func (p *Processor) OnError(jobID, message string) {
	p.logger.Debug("mux reported failure", logging.JobID(jobID), logging.String("error_message", message))
}
