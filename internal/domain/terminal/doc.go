// Package terminal provides the terminal execution backends and the
// strategy selection between them.
//
// Two backends implement the same Backend contract:
//
//   - Native: the shell runs under an OS pseudo-terminal (creack/pty). The
//     kernel supplies echo, line editing, signals, and true resize, so
//     output streams unmodified.
//   - Subprocess: the shell runs behind plain pipes for platforms or
//     environments where pty allocation fails. The backend emulates what a
//     pipe lacks: per-keystroke local echo, an output sanitization pipeline
//     (NUL and control stripping, ANSI removal, repeated-byte storm
//     suppression, whitespace collapsing), env-based size hints with
//     best-effort SIGWINCH resize, and SIGTERM-then-SIGKILL termination.
//
// The Selector decides per session which backend to construct. In "auto"
// mode it attempts native first and falls back to subprocess on any spawn
// failure, recording a human-readable fallback reason for the client; a
// circuit breaker short-circuits repeated native failures so later sessions
// skip the broken path. "native" and "subprocess" force one backend.
//
// Backends push output through a single tagged event channel:
//
//	res, err := selector.Spawn(terminal.Options{Cols: 80, Rows: 24})
//	for ev := range res.Backend.Events() {
//		switch ev.Type {
//		case terminal.EventData:
//			// stream ev.Data
//		case terminal.EventExit:
//			// ev.Code, ev.Signal; channel closes after this
//		}
//	}
//
// The exit event is always final and the channel closes after it, so
// consumers can range over the stream without a separate done signal.
package terminal
