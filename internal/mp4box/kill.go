package mp4box

import (
	"github.com/shirou/gopsutil/v4/process"
)

// killDescendants kills every descendant of pid, deepest first.
func killDescendants(pid int) {
	parent, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}
	for _, child := range descendants(parent) {
		_ = child.Kill()
	}
}

func descendants(parent *process.Process) []*process.Process {
	children, err := parent.Children()
	if err != nil {
		return nil
	}
	var out []*process.Process
	for _, child := range children {
		out = append(out, descendants(child)...)
		out = append(out, child)
	}
	return out
}

// terminateProcess asks pid to exit.
func terminateProcess(pid int) error {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	return proc.Terminate()
}
