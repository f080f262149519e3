package testsupport

import (
	"context"
	"testing"

	"mp4forge/internal/config"
	"mp4forge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob builds a job with one video, one audio, and one subtitle track
// writing to output.
func NewJob(output string) *queue.Job {
	return &queue.Job{
		Video:          &queue.Track{InputFile: "/media/in/video.h264", Language: "eng", Title: "Main"},
		AudioTracks:    []queue.Track{{InputFile: "/media/in/audio.aac", Language: "eng", Default: true}},
		SubtitleTracks: []queue.Track{{InputFile: "/media/in/subs.srt", Language: "fra"}},
		OutputFile:     output,
	}
}

// MustAddJob adds job to the manager and fails the test on error.
func MustAddJob(t testing.TB, mgr *queue.Manager, job *queue.Job) string {
	t.Helper()

	id, err := mgr.AddJob(context.Background(), job)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	return id
}
