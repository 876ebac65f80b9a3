package terminal

import (
	"bytes"
	"regexp"
)

// repeatRunThreshold is the length at which a run of one repeated byte is
// treated as stream corruption and deleted outright. This heuristic is part
// of the observable contract; it is deliberately not an escape parser.
const repeatRunThreshold = 10

var (
	// CSI sequences: ESC [ params intermediates final.
	ansiCSI = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	// OSC sequences: ESC ] payload terminated by BEL or ST.
	ansiOSC = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)
	// Remaining two-byte escapes. Must run after the CSI/OSC passes since
	// their introducers fall in the same byte range.
	ansiEsc = regexp.MustCompile(`\x1b[@-_]`)

	blankLines = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(` {10,}`)
)

// Sanitize normalizes raw subprocess output for plain streaming. The
// pipeline, in order: strip NUL bytes, delete long repeated-byte runs,
// strip ANSI escape sequences, drop control bytes outside tab/CR/LF,
// restrict to printable ASCII plus whitespace, then collapse excess blank
// lines and space runs. It operates per chunk; a sequence split across
// read boundaries may survive, which is accepted best-effort behavior.
func Sanitize(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	out := bytes.ReplaceAll(data, []byte{0x00}, nil)
	out = dropRepeatRuns(out)
	out = ansiOSC.ReplaceAll(out, nil)
	out = ansiCSI.ReplaceAll(out, nil)
	out = ansiEsc.ReplaceAll(out, nil)
	out = dropUnprintable(out)
	out = blankLines.ReplaceAll(out, []byte("\n\n"))
	out = spaceRuns.ReplaceAll(out, []byte(" "))
	return out
}

// dropRepeatRuns deletes any run of repeatRunThreshold or more identical
// bytes. Newlines and spaces are exempt: they have their own collapse rules
// at the end of the pipeline.
func dropRepeatRuns(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		j := i + 1
		for j < len(data) && data[j] == data[i] {
			j++
		}
		if j-i < repeatRunThreshold || data[i] == '\n' || data[i] == ' ' {
			out = append(out, data[i:j]...)
		}
		i = j
	}
	return out
}

// dropUnprintable keeps printable ASCII plus tab, newline, and carriage
// return. Everything else, including high bytes, is removed.
func dropUnprintable(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if (b >= 0x20 && b <= 0x7e) || b == '\t' || b == '\n' || b == '\r' {
			out = append(out, b)
		}
	}
	return out
}
