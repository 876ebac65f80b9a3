package terminal

import (
	"os"
	"os/exec"
	"runtime"
)

// DetectShell resolves the shell to spawn: an explicit preference wins, then
// the SHELL environment variable, then a per-platform default. On Windows
// the default chain is COMSPEC, then PowerShell if on PATH, then cmd.exe.
func DetectShell(preferred string) string {
	if preferred != "" {
		return preferred
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}

	switch runtime.GOOS {
	case "windows":
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		if ps, err := exec.LookPath("powershell.exe"); err == nil {
			return ps
		}
		return "cmd.exe"
	case "darwin":
		return "/bin/zsh"
	default:
		return "/bin/bash"
	}
}
