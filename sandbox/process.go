package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RealProcessRunner implements ProcessRunner using os/exec. It owns the
// full child lifecycle: spawn, best-effort resource limits, watchdog
// timeout, bounded output capture, and reaping.
type RealProcessRunner struct {
	logger *zap.Logger
}

// NewRealProcessRunner creates a process runner with the given logger
func NewRealProcessRunner(logger *zap.Logger) *RealProcessRunner {
	return &RealProcessRunner{logger: logger}
}

// Run executes the child to completion or timeout.
//
// The two concurrent activities are the child itself (waited on in a
// goroutine) and the watchdog timer; the select below is the only race
// point. Output pipes are drained by exec.Cmd's copier goroutines into
// capWriters, so the child is never blocked on a full pipe buffer and
// waiting can never deadlock.
func (r *RealProcessRunner) Run(ctx context.Context, spec ProcessSpec) (ProcessResult, error) {
	cmd := exec.Command(spec.Path, spec.Args...) //nolint:gosec // argv is assembled from validated configuration
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	if spec.Stdin != nil {
		cmd.Stdin = strings.NewReader(*spec.Stdin)
	}

	stdout := newCapWriter(spec.MaxOutputBytes)
	stderr := newCapWriter(spec.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// Own process group, so the watchdog kill reaches grandchildren too
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ProcessResult{}, fmt.Errorf("failed to start process: %w", err)
	}

	applyResourceLimits(cmd.Process.Pid, spec.Limits, r.logger)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		killProcessGroup(cmd)
		<-done
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return ProcessResult{}, ctx.Err()
	}

	result := ProcessResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		TimedOut: timedOut,
		Duration: time.Since(start),
	}

	if stdout.Truncated() || stderr.Truncated() {
		r.logger.Debug("output truncated",
			zap.Bool("stdout_truncated", stdout.Truncated()),
			zap.Bool("stderr_truncated", stderr.Truncated()))
	}

	if timedOut {
		// Killed by the watchdog: exit code is deliberately absent
		return result, nil
	}

	if waitErr == nil {
		code := 0
		result.ExitCode = &code
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = signalExitCode(exitErr)
		}
		result.ExitCode = &code
		return result, nil
	}

	// The process itself exited; failing to drain its streams afterwards is
	// non-fatal, so return whatever was captured with the recorded status.
	if state := cmd.ProcessState; state != nil {
		if code := state.ExitCode(); code >= 0 {
			result.ExitCode = &code
		}
		r.logger.Warn("stream drain error after process exit", zap.Error(waitErr))
		return result, nil
	}

	return ProcessResult{}, fmt.Errorf("process wait failed: %w", waitErr)
}
