package terminal

import (
	"errors"
	"os"
)

// Default terminal geometry applied when a caller does not specify one.
const (
	DefaultCols uint16 = 80
	DefaultRows uint16 = 24
)

// Strategy identifies which backend implementation drives a session.
type Strategy string

const (
	StrategyNative     Strategy = "native"
	StrategySubprocess Strategy = "subprocess"
)

// EventType discriminates events on a backend's stream.
type EventType int

const (
	// EventData carries terminal output bytes.
	EventData EventType = iota
	// EventExit reports process termination. It is always the final event
	// before the stream closes.
	EventExit
	// EventError reports a non-fatal backend fault.
	EventError
)

// Event is one item on a backend's event stream.
type Event struct {
	Type   EventType
	Data   []byte // EventData
	Code   int    // EventExit: exit code, -1 when signal-killed
	Signal string // EventExit: signal name when signal-killed
	Err    error  // EventError
}

// Options configures a terminal spawn.
type Options struct {
	Shell string
	Cwd   string
	Env   map[string]string
	Cols  uint16
	Rows  uint16
}

var (
	// ErrProcessDead is returned by Write when the backend process has
	// already exited. Callers treat it as a logged no-op.
	ErrProcessDead = errors.New("terminal process has exited")

	// ErrResizeUnsupported is returned by Resize when the platform offers
	// no way to signal a size change. Callers ignore it silently.
	ErrResizeUnsupported = errors.New("resize not supported by backend")
)

// Backend drives one terminal process. Implementations emit output and
// termination on the Events channel; the channel closes after the exit
// event, so consumers can range over it.
type Backend interface {
	// Write sends input to the process. Returns ErrProcessDead after exit.
	Write(data []byte) error
	// Resize updates the terminal geometry, best-effort on backends
	// without real window semantics.
	Resize(cols, rows uint16) error
	// Kill terminates the process. Idempotent; the exit event still flows
	// through Events.
	Kill() error
	// Pause stops reading process output, applying flow control at the
	// source. Resume reverses it.
	Pause()
	Resume()
	// Events returns the stream of data, error, and exit events.
	Events() <-chan Event
	Pid() int
	Running() bool
	Strategy() Strategy
	// ProcessTree reports the pid and its live descendants, best-effort.
	ProcessTree() []int
}

// eventBufferSize bounds in-flight events between a backend reader and its
// consumer. Consumers drain promptly; the buffer only smooths bursts.
const eventBufferSize = 256

// readBufferSize matches the pipe read granularity used by both backends.
const readBufferSize = 4096

// mergeEnv builds the child environment: the parent environment, then
// backend defaults, then caller overrides. Later entries win.
func mergeEnv(defaults []string, extra map[string]string) []string {
	env := os.Environ()
	env = append(env, defaults...)
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
