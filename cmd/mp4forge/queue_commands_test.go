package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mp4forge/internal/api"
)

func addTestJob(t *testing.T, env *cliTestEnv, output string) string {
	t.Helper()
	out, _, err := runCLI(t, []string{
		"queue", "add",
		"--video", "/media/in/video.h264",
		"--video-lang", "eng",
		"--audio", "/media/in/audio.ac3,lang=German,default,delay=-120",
		"--subtitle", "/media/in/forced.srt,lang=fra,forced",
		"--output", output,
		"--format", "json",
	}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	var job api.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode added job: %v\n%s", err, out)
	}
	return job.ID
}

func TestQueueAddListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	id := addTestJob(t, env, "/media/out/movie.mp4")

	out, _, err := runCLI(t, []string{"queue", "list"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, shortID(id))
	requireContains(t, out, "movie.mp4")
	requireContains(t, out, "Queued")
	requireContains(t, out, "1/1")

	out, _, err = runCLI(t, []string{"queue", "show", shortID(id)}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "Job "+id)
	requireContains(t, out, "lang=deu (German)")
	requireContains(t, out, "delay=-120ms")
	requireContains(t, out, "forced")

	out, _, err = runCLI(t, []string{"queue", "show", id, "--format", "yaml"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue show yaml: %v", err)
	}
	requireContains(t, out, "outputFile: /media/out/movie.mp4")
	requireContains(t, out, "status: queued")
}

func TestQueueListJSONAndStatusFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	addTestJob(t, env, "/media/out/one.mp4")
	addTestJob(t, env, "/media/out/two.mp4")

	out, _, err := runCLI(t, []string{"queue", "list", "--format", "json"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue list json: %v", err)
	}
	var jobs []api.Job
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs) != 2 || jobs[0].OutputFile != "/media/out/one.mp4" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "completed"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue list completed: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	if _, _, err := runCLI(t, []string{"queue", "list", "--status", "bogus"}, env.apiAddr, env.configPath); err == nil {
		t.Fatal("expected invalid status filter to fail")
	}
	if _, _, err := runCLI(t, []string{"queue", "list", "--format", "xml"}, env.apiAddr, env.configPath); err == nil {
		t.Fatal("expected unsupported format to fail")
	}
}

func TestQueueAddFromFile(t *testing.T) {
	env := setupCLITestEnv(t)
	jobFile := filepath.Join(env.baseDir, "job.yaml")
	content := `video:
  inputFile: /media/in/video.h264
  language: eng
audioTracks:
  - inputFile: /media/in/audio.aac
    language: jpn
    default: true
    trackId: 2
outputFile: /media/out/anime.mp4
`
	if err := os.WriteFile(jobFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write job file: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "add", "--from-file", jobFile}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue add --from-file: %v", err)
	}
	requireContains(t, out, "Queued job")
	requireContains(t, out, "/media/out/anime.mp4")

	out, _, err = runCLI(t, []string{"queue", "list", "--format", "json"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var jobs []api.Job
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs) != 1 || len(jobs[0].AudioTracks) != 1 {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	audio := jobs[0].AudioTracks[0]
	if audio.TrackID == nil || *audio.TrackID != 2 || !audio.Default {
		t.Fatalf("unexpected audio track: %+v", audio)
	}
}

func TestQueueAddRejectsInvalidJob(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"queue", "add", "--output", "/media/out/novideo.mp4"}, env.apiAddr, env.configPath)
	if err == nil {
		t.Fatal("expected job without video to be rejected")
	}
	requireContains(t, err.Error(), "video input file is required")
}

func TestQueueCancelRemoveAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	first := addTestJob(t, env, "/media/out/first.mp4")
	second := addTestJob(t, env, "/media/out/second.mp4")

	out, _, err := runCLI(t, []string{"queue", "cancel", shortID(first)}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue cancel: %v", err)
	}
	requireContains(t, out, "Cancelled job "+shortID(first))

	out, _, err = runCLI(t, []string{"queue", "cancel", first}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue cancel of a cancelled job: %v", err)
	}
	requireContains(t, out, "Job "+shortID(first)+" already cancelled; nothing to cancel")

	out, _, err = runCLI(t, []string{"queue", "remove", second}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed job "+shortID(second))

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 finished jobs")

	out, _, err = runCLI(t, []string{"queue", "status"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	if _, _, err := runCLI(t, []string{"queue", "show", "ffffffff"}, env.apiAddr, env.configPath); err == nil {
		t.Fatal("expected unknown job to fail")
	}
}

func TestQueueStartProcessesJobs(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "start"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue start on empty queue: %v", err)
	}
	requireContains(t, out, "no jobs queued")

	id := addTestJob(t, env, filepath.Join(env.baseDir, "out", "movie.mp4"))
	if _, _, err := runCLI(t, []string{"queue", "start"}, env.apiAddr, env.configPath); err != nil {
		t.Fatalf("queue start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		out, _, err := runCLI(t, []string{"queue", "list", "--status", "completed", "--format", "json"}, env.apiAddr, env.configPath)
		return err == nil && strings.Contains(out, id)
	})

	out, _, err = runCLI(t, []string{"events", "--job", id, "--until-done"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	requireContains(t, out, "job_added")
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"queue", "status"}, env.apiAddr, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Completed")

	if _, _, err := runCLI(t, []string{"queue", "stop"}, env.apiAddr, env.configPath); err != nil {
		t.Fatalf("queue stop: %v", err)
	}
}
