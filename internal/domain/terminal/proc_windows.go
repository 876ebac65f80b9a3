//go:build windows

package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// terminateProcess has no graceful signal on Windows; termination is
// immediate in both stages of the escalation.
func terminateProcess(pid int) error {
	return killProcess(pid)
}

func killProcess(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// notifyResize always fails: a plain pipe on Windows has no window-change
// signal, so resize is a no-op for the subprocess backend here.
func notifyResize(pid int) error {
	return ErrResizeUnsupported
}

func ptyReadDone(err error) bool {
	return errors.Is(err, io.EOF)
}

func exitStatus(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	return state.ExitCode(), ""
}

func processTree(root int) []int {
	return []int{root}
}
