//go:build windows

package executor

import (
	"os"
	"os/exec"
)

// configureSysProcAttr is a no-op on Windows; only the direct child is
// terminated on a forced stop.
func configureSysProcAttr(_ *exec.Cmd) {}

// killProcess terminates the direct child.
func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// exitStatus returns the OS-reported exit code.
func exitStatus(state *os.ProcessState) int {
	return state.ExitCode()
}
