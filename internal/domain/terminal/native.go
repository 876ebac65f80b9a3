package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
)

// Native runs the shell under a pseudo-terminal. The kernel supplies real
// terminal semantics: echo, line editing, job control, and resize, so output
// is streamed as-is.
type Native struct {
	opts   Options
	cmd    *exec.Cmd
	ptmx   *os.File
	events chan Event
	log    *logging.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	running bool
}

// NewNative spawns shell under a new pty sized to opts. Construction fails
// when the platform cannot allocate a pty or the shell cannot start; the
// selector treats that as the signal to fall back.
func NewNative(opts Options, log *logging.Logger) (*Native, error) {
	shell := DetectShell(opts.Shell)

	cmd := exec.Command(shell)
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	var defaults []string
	if os.Getenv("TERM") == "" {
		defaults = append(defaults, "TERM=xterm-256color")
	}
	cmd.Env = mergeEnv(defaults, opts.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
	if err != nil {
		return nil, fmt.Errorf("start pty for %s: %w", shell, err)
	}

	n := &Native{
		opts:    opts,
		cmd:     cmd,
		ptmx:    ptmx,
		events:  make(chan Event, eventBufferSize),
		log:     log,
		running: true,
	}
	n.cond = sync.NewCond(&n.mu)

	log.Debug("native terminal spawned",
		zap.String("shell", shell),
		zap.Int("pid", cmd.Process.Pid),
		zap.Uint16("cols", opts.Cols),
		zap.Uint16("rows", opts.Rows),
	)

	go n.readLoop()
	return n, nil
}

// waitWhilePaused blocks while the backend is paused and still running.
func (n *Native) waitWhilePaused() {
	n.mu.Lock()
	for n.paused && n.running {
		n.cond.Wait()
	}
	n.mu.Unlock()
}

// readLoop owns the event channel: it emits all data, reaps the process,
// emits the exit event, and closes the channel.
func (n *Native) readLoop() {
	defer close(n.events)

	buf := make([]byte, readBufferSize)
	for {
		n.waitWhilePaused()

		nr, err := n.ptmx.Read(buf)
		if nr > 0 {
			// A pause issued while the read was in flight holds this
			// chunk until Resume.
			n.waitWhilePaused()
			data := make([]byte, nr)
			copy(data, buf[:nr])
			n.events <- Event{Type: EventData, Data: data}
		}
		if err != nil {
			// EOF and EIO are how a pty master reports child exit.
			if !ptyReadDone(err) {
				n.log.Warn("pty read failed", zap.Error(err))
				n.events <- Event{Type: EventError, Err: err}
			}
			break
		}
	}

	_ = n.cmd.Wait()

	n.mu.Lock()
	n.running = false
	n.cond.Broadcast()
	n.mu.Unlock()
	_ = n.ptmx.Close()

	code, signal := exitStatus(n.cmd.ProcessState)
	n.events <- Event{Type: EventExit, Code: code, Signal: signal}
}

// Write sends input to the pty. The line discipline handles echo.
func (n *Native) Write(data []byte) error {
	if !n.Running() {
		return ErrProcessDead
	}
	if _, err := n.ptmx.Write(data); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return ErrProcessDead
		}
		return fmt.Errorf("pty write: %w", err)
	}
	return nil
}

// Resize applies a true window-size change to the pty.
func (n *Native) Resize(cols, rows uint16) error {
	if !n.Running() {
		return nil
	}
	if err := pty.Setsize(n.ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("pty resize: %w", err)
	}
	return nil
}

// Kill terminates the shell immediately. The pty delivers the resulting
// hangup to the foreground process group; the exit event flows through the
// read loop as usual.
func (n *Native) Kill() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	// Wake a paused reader so the exit can drain.
	n.paused = false
	n.cond.Broadcast()
	n.mu.Unlock()

	if n.cmd.Process != nil {
		_ = n.cmd.Process.Kill()
	}
	return nil
}

// Pause stops draining the pty. The kernel's pty buffer then backpressures
// the child directly.
func (n *Native) Pause() {
	n.mu.Lock()
	n.paused = true
	n.mu.Unlock()
}

// Resume restarts draining after Pause.
func (n *Native) Resume() {
	n.mu.Lock()
	n.paused = false
	n.mu.Unlock()
	n.cond.Broadcast()
}

func (n *Native) Events() <-chan Event {
	return n.events
}

func (n *Native) Pid() int {
	if n.cmd.Process == nil {
		return 0
	}
	return n.cmd.Process.Pid
}

func (n *Native) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

func (n *Native) Strategy() Strategy {
	return StrategyNative
}

// ProcessTree reports the shell and its descendants while running.
func (n *Native) ProcessTree() []int {
	if !n.Running() {
		return nil
	}
	return processTree(n.Pid())
}
