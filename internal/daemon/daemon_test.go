package daemon_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mp4forge/internal/api"
	"mp4forge/internal/config"
	"mp4forge/internal/daemon"
	"mp4forge/internal/events"
	"mp4forge/internal/logging"
	"mp4forge/internal/services"
	"mp4forge/internal/testsupport"
)

const stubMux = `echo "Importing: |====================| (100/100)"
exit 0`

func startDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, string) {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop(), daemon.WithVersion("test"))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(d.Stop)
	return d, "http://" + d.Addr()
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func jobRequest(output string) api.AddJobRequest {
	return api.AddJobRequest{
		Video:       &api.TrackInput{InputFile: "/media/in/video.h264", Language: "eng"},
		AudioTracks: []api.TrackInput{{InputFile: "/media/in/audio.aac", Language: "eng", Default: true}},
		OutputFile:  output,
	}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux))
	d, _ := startDaemon(t, cfg)
	require.True(t, d.Running())

	err := d.Start(context.Background())
	require.Error(t, err, "second start should fail")

	other, err := daemon.New(cfg, logging.NewNop())
	require.NoError(t, err)
	err = other.Start(context.Background())
	require.ErrorIs(t, err, services.ErrConflict)
	assert.False(t, other.Running())

	d.Stop()
	assert.False(t, d.Running())
	assert.False(t, d.Status(context.Background()).Running)
}

func TestAPIJobLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux))
	_, base := startDaemon(t, cfg)

	var created api.JobResponse
	status := doJSON(t, http.MethodPost, base+"/api/jobs", jobRequest("/out/movie.mp4"), &created)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "queued", created.Job.Status)
	id := created.Job.ID

	var list api.JobListResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/api/jobs?status=queued", nil, &list))
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, id, list.Jobs[0].ID)

	var queueStatus api.QueueStatus
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/api/queue/start", nil, &queueStatus))

	require.Eventually(t, func() bool {
		var got api.JobResponse
		if doJSON(t, http.MethodGet, base+"/api/jobs/"+id, nil, &got) != http.StatusOK {
			return false
		}
		return got.Job.Status == "completed" && got.Job.Progress.Percent == 100
	}, 5*time.Second, 20*time.Millisecond)

	var got api.JobResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/api/jobs/"+id, nil, &got))
	assert.Equal(t, "Completed", got.Job.Progress.Stage)
	assert.NotEmpty(t, got.Job.StartedAt)
	assert.NotEmpty(t, got.Job.CompletedAt)

	var cleared api.ClearResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/api/jobs/clear", nil, &cleared))
	assert.Equal(t, 1, cleared.Removed)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/api/queue/status", nil, &queueStatus))
	assert.Equal(t, 0, queueStatus.TotalCount)
}

func TestAPIErrorMapping(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux))
	_, base := startDaemon(t, cfg)

	var errResp api.ErrorResponse
	status := doJSON(t, http.MethodPost, base+"/api/queue/start", nil, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "no jobs queued", errResp.Error)

	status = doJSON(t, http.MethodGet, base+"/api/jobs/missing", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, `job "missing" not found`, errResp.Error)

	status = doJSON(t, http.MethodPost, base+"/api/jobs", api.AddJobRequest{OutputFile: "/out/x.mp4"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errResp.Error, "video input file is required")

	status = doJSON(t, http.MethodPost, base+"/api/jobs", map[string]any{"bogus": true}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errResp.Error, "invalid request body")

	status = doJSON(t, http.MethodGet, base+"/api/jobs?status=bogus", nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)

	var created api.JobResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/api/jobs", jobRequest("/out/a.mp4"), &created))
	var cancelled api.JobResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/api/jobs/"+created.Job.ID+"/cancel", nil, &cancelled))
	assert.Equal(t, "cancelled", cancelled.Job.Status)
	var again api.JobResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/api/jobs/"+created.Job.ID+"/cancel", nil, &again))
	assert.Equal(t, "cancelled", again.Job.Status)
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, base+"/api/jobs/missing/cancel", nil, &errResp))

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, base+"/api/jobs/"+created.Job.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodDelete, base+"/api/jobs/"+created.Job.ID, nil, &errResp))
}

func TestAPIRequiresBearerToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux), testsupport.WithAPIToken("s3cret"))
	_, base := startDaemon(t, cfg)

	resp, err := http.Get(base + "/api/queue/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/queue/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusReportsDependenciesAndDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux))
	_, base := startDaemon(t, cfg)

	var status api.DaemonStatus
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/api/status", nil, &status))
	assert.True(t, status.Running)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, cfg.LockPath(), status.LockFilePath)
	require.Len(t, status.Dependencies, 1)
	assert.Equal(t, "MP4Box", status.Dependencies[0].Name)
	assert.True(t, status.Dependencies[0].Available)
	require.NotNil(t, status.Database)
	assert.True(t, status.Database.Exists)
	assert.True(t, status.Database.Integrity)
	assert.NotNil(t, status.ActiveMuxes)
}

func TestQueueSurvivesRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux))
	d, base := startDaemon(t, cfg)

	var created api.JobResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/api/jobs", jobRequest("/out/a.mp4"), &created))
	d.Stop()

	_, base = startDaemon(t, cfg)
	var got api.JobResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/api/jobs/"+created.Job.ID, nil, &got))
	assert.Equal(t, "queued", got.Job.Status)
	assert.Equal(t, "/out/a.mp4", got.Job.OutputFile)
}

func TestWithoutPersistenceKeepsJobsInMemory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux), testsupport.WithoutPersistence())
	_, base := startDaemon(t, cfg)

	var created api.JobResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/api/jobs", jobRequest("/out/a.mp4"), &created))

	var status api.DaemonStatus
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/api/status", nil, &status))
	assert.Nil(t, status.Database)
	assert.Equal(t, 1, status.Queue.TotalCount)
}

func TestEventStreamDeliversJobEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux))
	_, base := startDaemon(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/events?since=0", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, ":connected", scanner.Text())

	var created api.JobResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/api/jobs", jobRequest("/out/a.mp4"), &created))

	var eventType, data string
	for scanner.Scan() {
		line := scanner.Text()
		if value, ok := strings.CutPrefix(line, "event: "); ok {
			eventType = value
		}
		if value, ok := strings.CutPrefix(line, "data: "); ok {
			data = value
			break
		}
	}
	require.Equal(t, "job_added", eventType)
	var evt struct {
		Type  string `json:"type"`
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, created.Job.ID, evt.JobID)
}

func TestEventStreamFlagsEventsLostFromBuffer(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(stubMux))
	d, base := startDaemon(t, cfg)
	hub := d.Events()
	for range 600 {
		hub.Publish(events.Event{Type: events.TypeJobAdded, JobID: "flood"})
	}
	first := hub.FirstSequence()
	require.Greater(t, first, uint64(2))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, ":connected", scanner.Text())
	require.True(t, scanner.Scan())
	require.True(t, scanner.Scan())
	assert.Equal(t, fmt.Sprintf(":missed 2-%d", first-1), scanner.Text())

	var firstID string
	for scanner.Scan() {
		if value, ok := strings.CutPrefix(scanner.Text(), "id: "); ok {
			firstID = value
			break
		}
	}
	assert.Equal(t, fmt.Sprint(first), firstID)
}
