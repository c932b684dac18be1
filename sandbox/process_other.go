//go:build !unix

package sandbox

import "os/exec"

func setProcessGroup(_ *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func signalExitCode(exitErr *exec.ExitError) int {
	return exitErr.ExitCode()
}
