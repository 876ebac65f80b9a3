package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
)

// killGracePeriod is how long a subprocess gets to exit after SIGTERM
// before the kill escalates to SIGKILL.
const killGracePeriod = 5 * time.Second

// Subprocess runs the shell behind plain pipes when no pty is available.
// A raw pipe has no terminal semantics, so this backend emulates the
// missing pieces: local echo for keystrokes, output sanitization, env-based
// size hints with best-effort SIGWINCH resize, and a two-stage kill.
type Subprocess struct {
	opts  Options
	cmd   *exec.Cmd
	stdin io.WriteCloser
	log   *logging.Logger

	events chan Event
	done   chan struct{}

	// emitMu serializes event sends against channel close.
	emitMu sync.Mutex
	closed bool

	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	running bool
}

// NewSubprocess spawns shell with piped stdio in its own process group.
func NewSubprocess(opts Options, log *logging.Logger) (*Subprocess, error) {
	shell := DetectShell(opts.Shell)

	cmd := exec.Command(shell)
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	// TERM=dumb discourages escape-heavy output; COLUMNS/LINES carry the
	// initial geometry a pipe cannot convey. Caller env still overrides.
	defaults := []string{
		"TERM=dumb",
		fmt.Sprintf("COLUMNS=%d", opts.Cols),
		fmt.Sprintf("LINES=%d", opts.Rows),
	}
	cmd.Env = mergeEnv(defaults, opts.Env)
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", shell, err)
	}

	s := &Subprocess{
		opts:    opts,
		cmd:     cmd,
		stdin:   stdin,
		log:     log,
		events:  make(chan Event, eventBufferSize),
		done:    make(chan struct{}),
		running: true,
	}
	s.cond = sync.NewCond(&s.mu)

	log.Debug("subprocess terminal spawned",
		zap.String("shell", shell),
		zap.Int("pid", cmd.Process.Pid),
		zap.Uint16("cols", opts.Cols),
		zap.Uint16("rows", opts.Rows),
	)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go s.pump(stdout, &pumps)
	go s.pump(stderr, &pumps)
	go s.monitor(&pumps)

	return s, nil
}

// waitWhilePaused blocks while the backend is paused and still running.
func (s *Subprocess) waitWhilePaused() {
	s.mu.Lock()
	for s.paused && s.running {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// pump reads one output pipe, sanitizes each chunk, and emits the result.
func (s *Subprocess) pump(r io.Reader, pumps *sync.WaitGroup) {
	defer pumps.Done()

	buf := make([]byte, readBufferSize)
	for {
		s.waitWhilePaused()

		n, err := r.Read(buf)
		if n > 0 {
			// A pause issued while the read was in flight holds this
			// chunk until Resume.
			s.waitWhilePaused()
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if out := Sanitize(chunk); len(out) > 0 {
				s.emit(Event{Type: EventData, Data: out})
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.log.Warn("subprocess read failed", zap.Error(err))
				s.emit(Event{Type: EventError, Err: err})
			}
			return
		}
	}
}

// monitor waits for the output pumps to drain, reaps the process, then
// emits the exit event and closes the stream. Closing under emitMu
// guarantees exit is the final event.
func (s *Subprocess) monitor(pumps *sync.WaitGroup) {
	pumps.Wait()
	_ = s.cmd.Wait()

	s.mu.Lock()
	s.running = false
	s.cond.Broadcast()
	s.mu.Unlock()
	close(s.done)

	code, signal := exitStatus(s.cmd.ProcessState)

	s.emitMu.Lock()
	if !s.closed {
		s.events <- Event{Type: EventExit, Code: code, Signal: signal}
		s.closed = true
		close(s.events)
	}
	s.emitMu.Unlock()
}

// emit delivers ev unless the stream has already closed.
func (s *Subprocess) emit(ev Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// Write sends input to the shell, emulating local echo first: Enter echoes
// CRLF and forwards a bare newline, Backspace echoes erase and forwards
// nothing, a single printable byte echoes itself, anything else is
// forwarded verbatim without echo. Echo bytes bypass the sanitizer and are
// emitted before the input reaches the child.
func (s *Subprocess) Write(data []byte) error {
	if !s.Running() {
		return ErrProcessDead
	}

	echo, forward := handleInput(data)
	if len(echo) > 0 {
		s.emit(Event{Type: EventData, Data: echo})
	}
	if len(forward) == 0 {
		return nil
	}

	if _, err := s.stdin.Write(forward); err != nil {
		if errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EPIPE) {
			return ErrProcessDead
		}
		return fmt.Errorf("stdin write: %w", err)
	}
	return nil
}

// handleInput splits one input write into the locally echoed bytes and the
// bytes forwarded to the child.
func handleInput(data []byte) (echo, forward []byte) {
	switch string(data) {
	case "":
		return nil, nil
	case "\r", "\n", "\r\n":
		return []byte("\r\n"), []byte("\n")
	case "\x7f", "\b":
		return []byte("\b \b"), nil
	}
	if len(data) == 1 && data[0] >= 0x20 && data[0] <= 0x7e {
		return data, data
	}
	return nil, data
}

// Resize records the new geometry and nudges the child. Best-effort only:
// POSIX gets a SIGWINCH the shell may or may not honor, Windows has no
// equivalent for a plain pipe.
func (s *Subprocess) Resize(cols, rows uint16) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.opts.Cols, s.opts.Rows = cols, rows
	pid := s.cmd.Process.Pid
	s.mu.Unlock()

	if err := notifyResize(pid); err != nil {
		if errors.Is(err, ErrResizeUnsupported) {
			return ErrResizeUnsupported
		}
		return fmt.Errorf("%w: %v", ErrResizeUnsupported, err)
	}
	return nil
}

// Kill asks the process group to terminate and escalates to SIGKILL if it
// has not exited within killGracePeriod. Returns once the escalation is
// armed; the exit event flows through Events as usual.
func (s *Subprocess) Kill() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	// Wake paused pumps so the exit can drain.
	s.paused = false
	s.cond.Broadcast()
	pid := s.cmd.Process.Pid
	s.mu.Unlock()

	if err := terminateProcess(pid); err != nil {
		// Refused or already gone; escalate immediately.
		_ = killProcess(pid)
		return nil
	}

	go func() {
		select {
		case <-s.done:
		case <-time.After(killGracePeriod):
			s.log.Warn("subprocess ignored SIGTERM, escalating",
				zap.Int("pid", pid))
			_ = killProcess(pid)
		}
	}()
	return nil
}

// Pause stops draining the output pipes; the pipe buffer then throttles
// the child. Resume reverses it.
func (s *Subprocess) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume restarts draining after Pause.
func (s *Subprocess) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Subprocess) Events() <-chan Event {
	return s.events
}

func (s *Subprocess) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Subprocess) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Subprocess) Strategy() Strategy {
	return StrategySubprocess
}

// ProcessTree reports the shell and its descendants while running.
func (s *Subprocess) ProcessTree() []int {
	if !s.Running() {
		return nil
	}
	return processTree(s.Pid())
}
