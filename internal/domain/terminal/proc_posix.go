//go:build !windows

package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// setProcessGroup puts cmd in its own process group so that signals reach
// the shell together with everything it has spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the process group led by pid, falling back to
// the process itself when no group exists.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err == nil {
		return nil
	}
	return syscall.Kill(pid, sig)
}

func terminateProcess(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

func killProcess(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

// notifyResize nudges the child about a window change. Without a controlling
// terminal there is no TIOCSWINSZ to apply, so SIGWINCH is the closest
// available approximation; a non-interactive shell may ignore it.
func notifyResize(pid int) error {
	return syscall.Kill(pid, syscall.SIGWINCH)
}

// ptyReadDone reports whether err is the normal end-of-stream a pty master
// returns once its child exits.
func ptyReadDone(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO)
}

// exitStatus reports how a finished process terminated: its exit code, and
// the signal name when it was killed by a signal (code -1 in that case).
func exitStatus(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal().String()
	}
	return state.ExitCode(), ""
}

// processTree returns root followed by its live descendant pids. It walks
// /proc where available and falls back to pgrep elsewhere (macOS).
func processTree(root int) []int {
	tree := []int{root}

	if children := readProcChildren(); children != nil {
		queue := []int{root}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			for _, c := range children[p] {
				tree = append(tree, c)
				queue = append(queue, c)
			}
		}
		return tree
	}

	queue := []int{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		out, err := exec.Command("pgrep", "-P", strconv.Itoa(p)).Output()
		if err != nil {
			continue // no children, or pgrep unavailable
		}
		for _, field := range strings.Fields(string(out)) {
			c, err := strconv.Atoi(field)
			if err != nil {
				continue
			}
			tree = append(tree, c)
			queue = append(queue, c)
		}
	}
	return tree
}

// readProcChildren builds a parent-to-children pid map from /proc, or nil
// when /proc is not readable.
func readProcChildren() map[int][]int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	children := make(map[int][]int)
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "stat"))
		if err != nil {
			continue
		}
		// Format: pid (comm) state ppid ... where comm may contain spaces,
		// so parse from the last closing paren.
		stat := string(data)
		idx := strings.LastIndexByte(stat, ')')
		if idx < 0 || idx+2 >= len(stat) {
			continue
		}
		fields := strings.Fields(stat[idx+1:])
		if len(fields) < 2 {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}
	return children
}
