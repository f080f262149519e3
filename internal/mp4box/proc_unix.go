//go:build !windows

package mp4box

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCommand puts MP4Box in its own process group so a stop reaches
// every helper it spawned.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup sends SIGTERM to the MP4Box process group, falling back to
// the leader alone if the group is gone.
func terminateGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		return terminateProcess(pid)
	}
	return nil
}

// killGroup sends SIGKILL to the group of an MP4Box process that has not
// been reaped yet.
func killGroup(cmd *exec.Cmd) error {
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
