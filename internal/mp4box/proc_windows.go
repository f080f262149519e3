//go:build windows

package mp4box

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureCommand keeps MP4Box from opening a console window.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}

// terminateGroup asks MP4Box to exit; its descendants were already killed.
func terminateGroup(pid int) error {
	return terminateProcess(pid)
}

func killGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
