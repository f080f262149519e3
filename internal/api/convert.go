package api

import (
	"strings"
	"time"

	"mp4forge/internal/language"
	"mp4forge/internal/queue"
	"mp4forge/internal/workflow"
)

// FromJob converts a queue job into its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:     job.ID,
		Status: string(job.Status),
		Progress: JobProgress{
			Percent: job.Progress,
			Stage:   job.ProgressStage,
		},
		ErrorMessage:   job.ErrorMessage,
		AudioTracks:    fromTracks(job.AudioTracks),
		SubtitleTracks: fromTracks(job.SubtitleTracks),
		OutputFile:     job.OutputFile,
		CreatedAt:      formatTime(&job.CreatedAt),
		StartedAt:      formatTime(job.StartedAt),
		CompletedAt:    formatTime(job.CompletedAt),
	}
	if job.Video != nil {
		video := fromTrack(*job.Video)
		dto.Video = &video
	}
	if job.HasChapters() {
		dto.Chapters = job.Chapters.Text
	}
	return dto
}

// FromJobs converts a list of queue jobs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

func fromTracks(tracks []queue.Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, fromTrack(t))
	}
	return out
}

func fromTrack(t queue.Track) Track {
	track := Track{
		TrackInput: TrackInput{
			InputFile: t.InputFile,
			Language:  t.Language,
			Title:     t.Title,
			DelayMS:   t.DelayMS,
			Default:   t.Default,
			Forced:    t.Forced,
		},
	}
	if t.TrackID != nil {
		track.TrackID = queue.IntPtr(*t.TrackID)
	}
	if t.Language != "" {
		track.LanguageName = language.DisplayName(t.Language)
	}
	return track
}

// ToQueueJob converts a submission into a validated queue job with
// normalized languages.
func ToQueueJob(req AddJobRequest) (*queue.Job, error) {
	job := &queue.Job{
		AudioTracks:    toTracks(req.AudioTracks),
		SubtitleTracks: toTracks(req.SubtitleTracks),
		OutputFile:     strings.TrimSpace(req.OutputFile),
	}
	if req.Video != nil {
		video := toTrack(*req.Video)
		job.Video = &video
	}
	if strings.TrimSpace(req.Chapters) != "" {
		job.Chapters = &queue.Chapters{Text: req.Chapters}
	}
	job.NormalizeLanguages()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func toTracks(inputs []TrackInput) []queue.Track {
	out := make([]queue.Track, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, toTrack(in))
	}
	return out
}

func toTrack(in TrackInput) queue.Track {
	t := queue.Track{
		InputFile: strings.TrimSpace(in.InputFile),
		Language:  in.Language,
		Title:     strings.TrimSpace(in.Title),
		DelayMS:   in.DelayMS,
		Default:   in.Default,
		Forced:    in.Forced,
	}
	if in.TrackID != nil {
		t.TrackID = queue.IntPtr(*in.TrackID)
	}
	return t
}

// FromStatusSummary converts a processor summary.
func FromStatusSummary(summary workflow.StatusSummary) ProcessorStatus {
	status := ProcessorStatus{
		Running:    summary.Running,
		CurrentJob: summary.CurrentJob,
		LastError:  summary.LastError,
		LastOutput: summary.LastOutput,
		Completed:  summary.Completed,
		Failed:     summary.Failed,
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		status.LastJob = &last
	}
	return status
}

// MergeQueueStats returns counts for every known status, zero-filled.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
