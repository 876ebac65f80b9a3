package terminal

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectShellPrefersExplicit(t *testing.T) {
	t.Setenv("SHELL", "/bin/ignored")
	assert.Equal(t, "/opt/custom/sh", DetectShell("/opt/custom/sh"))
}

func TestDetectShellHonorsEnvironment(t *testing.T) {
	t.Setenv("SHELL", "/usr/local/bin/fish")
	assert.Equal(t, "/usr/local/bin/fish", DetectShell(""))
}

func TestDetectShellPlatformDefault(t *testing.T) {
	t.Setenv("SHELL", "")

	shell := DetectShell("")
	assert.NotEmpty(t, shell)

	switch runtime.GOOS {
	case "darwin":
		assert.Equal(t, "/bin/zsh", shell)
	case "windows":
		// COMSPEC, PowerShell, or cmd.exe depending on the host.
	default:
		assert.Equal(t, "/bin/bash", shell)
	}
}
