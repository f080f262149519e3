package events

import (
	"mp4forge/internal/queue"
)

// OnJobAdded implements queue.Observer.
func (h *Hub) OnJobAdded(job *queue.Job) {
	h.Publish(Event{Type: TypeJobAdded, JobID: job.ID, Status: string(job.Status), OutputFile: job.OutputFile})
}

// OnJobStatusChanged implements queue.Observer.
func (h *Hub) OnJobStatusChanged(job *queue.Job) {
	h.Publish(Event{
		Type:       TypeJobStatus,
		JobID:      job.ID,
		Status:     string(job.Status),
		Progress:   job.Progress,
		Error:      job.ErrorMessage,
		OutputFile: job.OutputFile,
	})
}

// OnJobProgress implements queue.Observer.
func (h *Hub) OnJobProgress(jobID string, percent float64, stage string) {
	h.Publish(Event{Type: TypeJobProgress, JobID: jobID, Progress: percent, Stage: stage})
}

// OnQueueCompleted implements queue.Observer.
func (h *Hub) OnQueueCompleted() {
	h.Publish(Event{Type: TypeQueueCompleted})
}

var _ queue.Observer = (*Hub)(nil)
