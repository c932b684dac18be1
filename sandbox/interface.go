// Package sandbox provides WASI-based code execution capabilities.
//
// The sandbox package implements the execution engine for running untrusted
// Python snippets inside a WASI interpreter module launched through an
// external runtime CLI (wasmtime by default). It enforces wall-clock
// timeouts, best-effort OS resource limits, and per-stream output caps.
package sandbox

import (
	"context"
	"time"
)

// ExecuteRequest represents the parameters for one code execution
type ExecuteRequest struct {
	// Code is the Python source text handed to the interpreter as-is.
	Code string
	// Stdin is piped to the child when non-nil; nil means empty input.
	Stdin *string
	// TimeoutMs is the wall-clock budget, already clamped by the caller.
	TimeoutMs int
}

// ExecuteResult represents the outcome of one code execution
type ExecuteResult struct {
	Stdout string
	Stderr string
	// ExitCode is nil when the watchdog killed the process. A child that
	// died from a signal (other than the watchdog kill) is reported as the
	// negative signal number.
	ExitCode   *int
	TimedOut   bool
	DurationMs int64
}

// Executor defines the interface for sandboxed execution
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// LimitKind identifies one best-effort OS resource limit
type LimitKind int

// Resource limit kinds applied to the child process
const (
	LimitCPUTime LimitKind = iota
	LimitAddressSpace
	LimitFileSize
	LimitOpenFiles
	LimitProcesses
)

// String returns the limit kind name for logging
func (k LimitKind) String() string {
	switch k {
	case LimitCPUTime:
		return "cpu_time"
	case LimitAddressSpace:
		return "address_space"
	case LimitFileSize:
		return "file_size"
	case LimitOpenFiles:
		return "open_files"
	case LimitProcesses:
		return "processes"
	default:
		return "unknown"
	}
}

// ResourceLimit is one (kind, value) pair applied independently to the
// child. Application is fail-soft: an unsupported limit is skipped.
type ResourceLimit struct {
	Kind  LimitKind
	Value uint64
}

// Fixed conservative limits, independent of configuration
const (
	MaxChildFileSizeBytes = 16 * 1024 * 1024
	MaxChildOpenFiles     = 64
	MaxChildProcesses     = 64
)

// ProcessSpec describes one child process invocation
type ProcessSpec struct {
	Path           string
	Args           []string
	Env            []string
	Dir            string
	Stdin          *string
	Timeout        time.Duration
	MaxOutputBytes int
	Limits         []ResourceLimit
}

// ProcessResult is the raw outcome of one child process run
type ProcessResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode *int
	TimedOut bool
	Duration time.Duration
}

// ProcessRunner defines an interface for running a child process to
// completion or timeout with bounded output capture
type ProcessRunner interface {
	Run(ctx context.Context, spec ProcessSpec) (ProcessResult, error)
}
