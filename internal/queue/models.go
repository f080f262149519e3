package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a mux job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Cancellable reports whether CancelJob may move a job out of s.
func (s Status) Cancellable() bool {
	return s == StatusQueued || s == StatusProcessing
}

// Track describes one input stream. Video tracks ignore Default, Forced and
// TrackID; subtitle tracks ignore DelayMS.
type Track struct {
	InputFile string `json:"input_file"`
	Language  string `json:"language,omitempty"`
	Title     string `json:"title,omitempty"`
	DelayMS   int    `json:"delay_ms,omitempty"`
	Default   bool   `json:"default,omitempty"`
	Forced    bool   `json:"forced,omitempty"`
	// TrackID selects a stream inside a multi-track container. Nil means the
	// muxer's default slot for the track kind.
	TrackID *int `json:"track_id,omitempty"`
}

// Chapters is an opaque MP4Box chapter file body.
type Chapters struct {
	Text string `json:"chapters"`
}

// Job is one mux request and its lifecycle.
type Job struct {
	ID             string
	Video          *Track
	AudioTracks    []Track
	SubtitleTracks []Track
	Chapters       *Chapters
	OutputFile     string
	Status         Status
	Progress       float64
	ProgressStage  string
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// Clone returns a deep copy so callers never alias Manager state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Video != nil {
		v := j.Video.clone()
		cp.Video = &v
	}
	cp.AudioTracks = cloneTracks(j.AudioTracks)
	cp.SubtitleTracks = cloneTracks(j.SubtitleTracks)
	if j.Chapters != nil {
		ch := *j.Chapters
		cp.Chapters = &ch
	}
	cp.StartedAt = cloneTime(j.StartedAt)
	cp.CompletedAt = cloneTime(j.CompletedAt)
	return &cp
}

// HasChapters reports whether the job carries a non-empty chapter blob.
func (j *Job) HasChapters() bool {
	return j != nil && j.Chapters != nil && strings.TrimSpace(j.Chapters.Text) != ""
}

func (t Track) clone() Track {
	if t.TrackID != nil {
		id := *t.TrackID
		t.TrackID = &id
	}
	return t
}

func cloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// IntPtr is a convenience for building Track.TrackID values.
func IntPtr(v int) *int {
	return &v
}
