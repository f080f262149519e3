package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mp4forge/internal/queue"
	"mp4forge/internal/testsupport"
)

func TestSaveJobRoundTripsTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)
	job := &queue.Job{
		ID:    "job-1",
		Video: &queue.Track{InputFile: "/in/video.mkv", Language: "eng", Title: "Feature", DelayMS: -40},
		AudioTracks: []queue.Track{
			{InputFile: "/in/video.mkv", Language: "jpn", Default: true, TrackID: queue.IntPtr(2)},
			{InputFile: "/in/commentary.aac", Language: "eng", Title: "Commentary"},
		},
		SubtitleTracks: []queue.Track{
			{InputFile: "/in/signs.srt", Language: "eng", Forced: true, Default: true},
		},
		Chapters:   &queue.Chapters{Text: "CHAPTER01=00:00:00.000\nCHAPTER01NAME=Intro\n"},
		OutputFile: "/out/feature.mp4",
		Status:     queue.StatusProcessing,
		CreatedAt:  created,
		StartedAt:  &started,
	}
	if err := store.SaveJob(ctx, job, 0); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	jobs, err := store.LoadAllJobs(ctx)
	if err != nil {
		t.Fatalf("LoadAllJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	got := jobs[0]
	if got.Video == nil || got.Video.DelayMS != -40 || got.Video.Title != "Feature" {
		t.Fatalf("unexpected video track: %#v", got.Video)
	}
	if len(got.AudioTracks) != 2 {
		t.Fatalf("expected 2 audio tracks, got %d", len(got.AudioTracks))
	}
	if got.AudioTracks[0].TrackID == nil || *got.AudioTracks[0].TrackID != 2 {
		t.Fatalf("expected track_id 2 to survive, got %#v", got.AudioTracks[0].TrackID)
	}
	if got.AudioTracks[1].TrackID != nil {
		t.Fatalf("expected nil track_id to survive, got %v", *got.AudioTracks[1].TrackID)
	}
	if !got.SubtitleTracks[0].Forced || !got.SubtitleTracks[0].Default {
		t.Fatalf("unexpected subtitle flags: %#v", got.SubtitleTracks[0])
	}
	if !got.HasChapters() || got.Chapters.Text != job.Chapters.Text {
		t.Fatalf("unexpected chapters: %#v", got.Chapters)
	}
	if got.Status != queue.StatusProcessing {
		t.Fatalf("unexpected status %q", got.Status)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at %s", got.CreatedAt)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected started_at %v", got.StartedAt)
	}
	if got.CompletedAt != nil {
		t.Fatalf("expected nil completed_at, got %v", got.CompletedAt)
	}
}

func TestSaveJobWithoutVideoOrChapters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := &queue.Job{ID: "audio-only", OutputFile: "/out/a.mp4", Status: queue.StatusQueued, CreatedAt: time.Now()}
	if err := store.SaveJob(ctx, job, 0); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	jobs, err := store.LoadAllJobs(ctx)
	if err != nil {
		t.Fatalf("LoadAllJobs: %v", err)
	}
	if jobs[0].Video != nil || jobs[0].Chapters != nil {
		t.Fatalf("expected nil video and chapters, got %#v", jobs[0])
	}
	if jobs[0].AudioTracks == nil || len(jobs[0].AudioTracks) != 0 {
		t.Fatalf("expected empty audio list, got %#v", jobs[0].AudioTracks)
	}
}

func TestLoadAllJobsOrdersByPosition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i, id := range []string{"c", "a", "b"} {
		job := &queue.Job{ID: id, OutputFile: "/out/" + id, Status: queue.StatusQueued, CreatedAt: time.Now()}
		if err := store.SaveJob(ctx, job, 2-i); err != nil {
			t.Fatalf("SaveJob %s: %v", id, err)
		}
	}
	assertOrder(t, store, "b", "a", "c")

	if err := store.RewritePositions(ctx, []string{"a", "c", "b"}); err != nil {
		t.Fatalf("RewritePositions: %v", err)
	}
	assertOrder(t, store, "a", "c", "b")
}

func assertOrder(t *testing.T, store *queue.Store, want ...string) {
	t.Helper()
	jobs, err := store.LoadAllJobs(context.Background())
	if err != nil {
		t.Fatalf("LoadAllJobs: %v", err)
	}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for i, id := range want {
		if jobs[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, jobs[i].ID, id)
		}
	}
}

func TestDeleteCompletedJobsRemovesTerminalOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i, status := range queue.AllStatuses() {
		job := &queue.Job{ID: string(status), OutputFile: "/out", Status: status, CreatedAt: time.Now()}
		if err := store.SaveJob(ctx, job, i); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}
	removed, err := store.DeleteCompletedJobs(ctx)
	if err != nil {
		t.Fatalf("DeleteCompletedJobs: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	assertOrder(t, store, string(queue.StatusQueued), string(queue.StatusProcessing))

	if err := store.DeleteJob(ctx, string(queue.StatusQueued)); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if err := store.DeleteJob(ctx, "missing"); err != nil {
		t.Fatalf("DeleteJob missing: %v", err)
	}
	assertOrder(t, store, string(queue.StatusProcessing))

	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	assertOrder(t, store)
}

func TestOpenBacksUpMismatchedSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	job := &queue.Job{ID: "old", OutputFile: "/out", Status: queue.StatusQueued, CreatedAt: time.Now()}
	if err := store.SaveJob(ctx, job, 0); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}
	store.Close()

	raw, err := sql.Open("sqlite", cfg.Paths.QueueDB)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := raw.Exec("UPDATE schema_version SET version = 0"); err != nil {
		t.Fatalf("downgrade version: %v", err)
	}
	raw.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	wantBackup := cfg.Paths.QueueDB + ".v0.bak"
	if reopened.BackupPath() != wantBackup {
		t.Fatalf("unexpected backup path %q", reopened.BackupPath())
	}
	if _, err := os.Stat(wantBackup); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	jobs, err := reopened.LoadAllJobs(ctx)
	if err != nil {
		t.Fatalf("LoadAllJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty queue after recreate, got %d jobs", len(jobs))
	}

	health, err := reopened.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.SchemaCurrent || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health after recreate: %+v", health)
	}
}

func TestCheckHealthCountsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	for i := range 2 {
		job := &queue.Job{ID: string(rune('a' + i)), OutputFile: "/out", Status: queue.StatusQueued, CreatedAt: time.Now()}
		if err := store.SaveJob(ctx, job, i); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}
	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || health.TotalJobs != 2 {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.DBPath != filepath.Clean(cfg.Paths.QueueDB) {
		t.Fatalf("unexpected db path %q", health.DBPath)
	}
}

func TestOpenPathRejectsEmptyPath(t *testing.T) {
	if _, err := queue.OpenPath(""); !errors.Is(err, queue.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
