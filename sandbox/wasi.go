package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/isdmx/wasibox/config"
)

// Config holds configuration for the WASI executor
type Config struct {
	RuntimeExecutable string
	RuntimeModulePath string
	RuntimeExtraArgs  string
	Isolated          bool
	DefaultTimeoutMs  int
	MaxTimeoutMs      int
	MaxOutputBytes    int
	CPUTimeLimitSec   int
	MemoryLimitMB     int
}

// WasiExecutor implements Executor by launching the external WASI runtime
// CLI against the configured python.wasm module
type WasiExecutor struct {
	logger   *zap.Logger
	config   *Config
	resolver RuntimeResolver
	runner   ProcessRunner
}

// WasiExecutorOption defines a functional option for WasiExecutor
type WasiExecutorOption func(*WasiExecutor)

// WithProcessRunner sets the ProcessRunner for WasiExecutor
func WithProcessRunner(runner ProcessRunner) WasiExecutorOption {
	return func(e *WasiExecutor) {
		e.runner = runner
	}
}

// WithRuntimeResolver sets the RuntimeResolver for WasiExecutor
func WithRuntimeResolver(resolver RuntimeResolver) WasiExecutorOption {
	return func(e *WasiExecutor) {
		e.resolver = resolver
	}
}

// NewWasiExecutor creates a new WasiExecutor with default implementations
// and optional interfaces
func NewWasiExecutor(logger *zap.Logger, config *Config, opts ...WasiExecutorOption) *WasiExecutor {
	executor := &WasiExecutor{
		logger:   logger,
		config:   config,
		resolver: &realRuntimeResolver{cfg: config}, // Default implementation
		runner:   NewRealProcessRunner(logger),      // Default implementation
	}

	// Apply options
	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// NewExecutor builds the WASI executor from the application configuration
func NewExecutor(logger *zap.Logger, cfg *appconfig.Config) Executor {
	return NewWasiExecutor(logger, &Config{
		RuntimeExecutable: cfg.Runtime.Executable,
		RuntimeModulePath: cfg.Runtime.ModulePath,
		RuntimeExtraArgs:  cfg.Runtime.ExtraArgs,
		Isolated:          cfg.Runtime.Isolated,
		DefaultTimeoutMs:  cfg.Sandbox.DefaultTimeoutMs,
		MaxTimeoutMs:      cfg.Sandbox.MaxTimeoutMs,
		MaxOutputBytes:    cfg.Sandbox.MaxOutputBytes,
		CPUTimeLimitSec:   cfg.Sandbox.CPUTimeLimitSec,
		MemoryLimitMB:     cfg.Sandbox.MemoryLimitMB,
	})
}

// Execute runs one snippet to completion or timeout under resource limits.
// Non-zero exits, stderr output, timeouts, and truncation are all normal
// results; only configuration and spawn failures return an error.
func (e *WasiExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	rt, err := e.resolver.Resolve()
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("runtime resolution failed: %w", err)
	}

	timeout := e.clampTimeout(req.TimeoutMs)
	args, env := buildInvocation(rt, req.Code, e.config.Isolated)

	// Scratch working directory; the guest sees none of it, only the
	// Python tree mapping from the invocation.
	workDir, err := os.MkdirTemp("", "wasibox-exec-*")
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			e.logger.Error("failed to remove work directory", zap.String("path", workDir), zap.Error(rmErr))
		}
	}()

	e.logger.Debug("launching WASI runtime",
		zap.String("runtime", rt.RuntimePath),
		zap.String("module", rt.ModulePath),
		zap.Duration("timeout", timeout),
		zap.Bool("has_stdin", req.Stdin != nil))

	res, err := e.runner.Run(ctx, ProcessSpec{
		Path:           rt.RuntimePath,
		Args:           args,
		Env:            env,
		Dir:            workDir,
		Stdin:          req.Stdin,
		Timeout:        timeout,
		MaxOutputBytes: e.config.MaxOutputBytes,
		Limits:         e.resourceLimits(),
	})
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to run WASI runtime: %w", err)
	}

	result := ExecuteResult{
		Stdout:     string(res.Stdout),
		Stderr:     string(res.Stderr),
		ExitCode:   res.ExitCode,
		TimedOut:   res.TimedOut,
		DurationMs: res.Duration.Milliseconds(),
	}

	e.logger.Info("execution completed",
		zap.Bool("timed_out", result.TimedOut),
		zap.Int64("duration_ms", result.DurationMs),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	return result, nil
}

// clampTimeout normalizes the requested budget into [1ms, max]. The HTTP
// boundary already validates; this keeps the core safe for other callers.
func (e *WasiExecutor) clampTimeout(timeoutMs int) time.Duration {
	if timeoutMs <= 0 {
		timeoutMs = e.config.DefaultTimeoutMs
	}
	if e.config.MaxTimeoutMs > 0 && timeoutMs > e.config.MaxTimeoutMs {
		timeoutMs = e.config.MaxTimeoutMs
	}
	return time.Duration(timeoutMs) * time.Millisecond
}

func (e *WasiExecutor) resourceLimits() []ResourceLimit {
	return []ResourceLimit{
		{Kind: LimitCPUTime, Value: uint64(e.config.CPUTimeLimitSec)},
		{Kind: LimitAddressSpace, Value: uint64(e.config.MemoryLimitMB) * 1024 * 1024},
		{Kind: LimitFileSize, Value: MaxChildFileSizeBytes},
		{Kind: LimitOpenFiles, Value: MaxChildOpenFiles},
		{Kind: LimitProcesses, Value: MaxChildProcesses},
	}
}
