//go:build !windows

package mp4box_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mp4forge/internal/queue"
	"mp4forge/internal/testsupport"
)

func TestKillEscalatesAndClearsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	cfg := testsupport.NewConfig(t, testsupport.WithStubMP4Box(`echo $$ > "`+pidFile+`"
trap '' TERM
echo "Video import: (1/100)"
while :; do sleep 1; done`))
	cfg.MP4Box.KillTimeoutSeconds = 1
	exec, mgr, id := setup(t, cfg)

	done := make(chan error, 1)
	go func() {
		done <- exec.Execute(context.Background(), mustJob(t, mgr, id), nil)
	}()
	require.Eventually(t, func() bool {
		_, err := os.Stat(pidFile)
		return err == nil && len(exec.Active()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, mgr.CancelJob(context.Background(), id))
	require.True(t, exec.Kill(id))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Execute did not return after Kill")
	}
	assert.Equal(t, queue.StatusCancelled, mustJob(t, mgr, id).Status)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return errors.Is(syscall.Kill(-pid, 0), syscall.ESRCH)
	}, 5*time.Second, 20*time.Millisecond, "process group %d still alive", pid)
}
