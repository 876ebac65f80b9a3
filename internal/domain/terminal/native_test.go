package terminal

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
)

// spawnNativeCat allocates a real pty around cat, skipping when the host
// cannot provide one.
func spawnNativeCat(t *testing.T) *Native {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("pty not supported on windows")
	}
	n, err := NewNative(Options{Shell: "cat", Cols: 80, Rows: 24}, logging.NewNop())
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(func() { _ = n.Kill() })
	return n
}

func TestNativeRoundTrip(t *testing.T) {
	n := spawnNativeCat(t)

	assert.True(t, n.Running())
	assert.Greater(t, n.Pid(), 0)
	assert.Equal(t, StrategyNative, n.Strategy())

	require.NoError(t, n.Write([]byte("hi\r")))

	// The pty line discipline echoes the input; collect output until it
	// shows up.
	var output strings.Builder
	deadline := time.After(5 * time.Second)
	for !strings.Contains(output.String(), "hi") {
		select {
		case ev, ok := <-n.Events():
			require.True(t, ok, "stream closed before echo arrived")
			if ev.Type == EventData {
				output.Write(ev.Data)
			}
		case <-deadline:
			t.Fatalf("no echo within deadline, got %q", output.String())
		}
	}
}

func TestNativeResize(t *testing.T) {
	n := spawnNativeCat(t)
	require.NoError(t, n.Resize(132, 43))
}

func TestNativeKillEmitsExitAndCloses(t *testing.T) {
	n := spawnNativeCat(t)

	require.NoError(t, n.Kill())
	require.NoError(t, n.Kill()) // idempotent

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-n.Events():
			if !ok {
				t.Fatal("stream closed without an exit event")
			}
			if ev.Type == EventExit {
				_, open := <-n.Events()
				assert.False(t, open)
				assert.False(t, n.Running())
				assert.ErrorIs(t, n.Write([]byte("late")), ErrProcessDead)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for exit event")
		}
	}
}

func TestNativeProcessTreeIncludesShell(t *testing.T) {
	n := spawnNativeCat(t)
	assert.Contains(t, n.ProcessTree(), n.Pid())
}
