package sandbox

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	appconfig "github.com/isdmx/wasibox/config"
)

// MockRuntimeResolver implements RuntimeResolver for testing
type MockRuntimeResolver struct {
	resolved *ResolvedRuntime
	err      error
}

func (m *MockRuntimeResolver) Resolve() (*ResolvedRuntime, error) {
	return m.resolved, m.err
}

// MockProcessRunner implements ProcessRunner for testing
type MockProcessRunner struct {
	lastSpec ProcessSpec
	result   ProcessResult
	err      error
}

func (m *MockProcessRunner) Run(_ context.Context, spec ProcessSpec) (ProcessResult, error) {
	m.lastSpec = spec
	return m.result, m.err
}

func testConfig() *Config {
	return &Config{
		RuntimeExecutable: "wasmtime",
		RuntimeModulePath: "/opt/py/python.wasm",
		DefaultTimeoutMs:  2000,
		MaxTimeoutMs:      5000,
		MaxOutputBytes:    1_000_000,
		CPUTimeLimitSec:   2,
		MemoryLimitMB:     256,
	}
}

func testResolved() *ResolvedRuntime {
	return &ResolvedRuntime{
		RuntimePath: "/usr/local/bin/wasmtime",
		ModulePath:  "/opt/py/python.wasm",
		HostMapping: "/opt/py::python",
	}
}

func TestWasiExecutorConstructors(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()

	t.Run("DefaultConstructor", func(t *testing.T) {
		executor := NewWasiExecutor(logger, cfg)
		require.NotNil(t, executor)
		assert.Equal(t, logger, executor.logger)
		assert.Equal(t, cfg, executor.config)
		// Default implementations should be set
		assert.NotNil(t, executor.resolver)
		assert.NotNil(t, executor.runner)
	})

	t.Run("ConstructorWithOptions", func(t *testing.T) {
		mockResolver := &MockRuntimeResolver{}
		mockRunner := &MockProcessRunner{}

		executor := NewWasiExecutor(
			logger,
			cfg,
			WithRuntimeResolver(mockResolver),
			WithProcessRunner(mockRunner),
		)
		require.NotNil(t, executor)
		assert.Equal(t, mockResolver, executor.resolver)
		assert.Equal(t, mockRunner, executor.runner)
	})
}

func TestNewExecutorFromAppConfig(t *testing.T) {
	appCfg := &appconfig.Config{
		Sandbox: appconfig.SandboxConfig{
			MaxTimeoutMs:     5000,
			DefaultTimeoutMs: 2000,
			MaxOutputBytes:   1_000_000,
			CPUTimeLimitSec:  2,
			MemoryLimitMB:    256,
		},
		Runtime: appconfig.RuntimeConfig{
			Executable: "wasmtime",
			ModulePath: "/opt/py/python.wasm",
			ExtraArgs:  "--wasm-timeout 10s",
			Isolated:   true,
		},
	}

	executor := NewExecutor(zaptest.NewLogger(t), appCfg)
	wasi, ok := executor.(*WasiExecutor)
	require.True(t, ok)
	assert.Equal(t, "wasmtime", wasi.config.RuntimeExecutable)
	assert.Equal(t, "/opt/py/python.wasm", wasi.config.RuntimeModulePath)
	assert.Equal(t, "--wasm-timeout 10s", wasi.config.RuntimeExtraArgs)
	assert.True(t, wasi.config.Isolated)
	assert.Equal(t, 1_000_000, wasi.config.MaxOutputBytes)
}

func TestWasiExecutorExecute(t *testing.T) {
	logger := zaptest.NewLogger(t)

	newExecutor := func(runner *MockProcessRunner) *WasiExecutor {
		return NewWasiExecutor(logger, testConfig(),
			WithRuntimeResolver(&MockRuntimeResolver{resolved: testResolved()}),
			WithProcessRunner(runner),
		)
	}

	t.Run("MapsSuccessfulResult", func(t *testing.T) {
		exitCode := 0
		runner := &MockProcessRunner{result: ProcessResult{
			Stdout:   []byte("hi\n"),
			Stderr:   []byte(""),
			ExitCode: &exitCode,
			Duration: 42 * time.Millisecond,
		}}

		result, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{
			Code:      "print('hi')",
			TimeoutMs: 5000,
		})
		require.NoError(t, err)
		assert.Equal(t, "hi\n", result.Stdout)
		assert.Empty(t, result.Stderr)
		require.NotNil(t, result.ExitCode)
		assert.Equal(t, 0, *result.ExitCode)
		assert.False(t, result.TimedOut)
		assert.Equal(t, int64(42), result.DurationMs)
	})

	t.Run("MapsTimeoutResult", func(t *testing.T) {
		runner := &MockProcessRunner{result: ProcessResult{
			Stdout:   []byte("partial"),
			TimedOut: true,
			Duration: 105 * time.Millisecond,
		}}

		result, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{
			Code:      "while True: pass",
			TimeoutMs: 100,
		})
		require.NoError(t, err)
		assert.True(t, result.TimedOut)
		assert.Nil(t, result.ExitCode)
		assert.Equal(t, "partial", result.Stdout)
	})

	t.Run("ResolverErrorPropagates", func(t *testing.T) {
		executor := NewWasiExecutor(logger, testConfig(),
			WithRuntimeResolver(&MockRuntimeResolver{err: errors.New("no wasmtime")}),
			WithProcessRunner(&MockProcessRunner{}),
		)

		_, err := executor.Execute(context.Background(), ExecuteRequest{Code: "pass"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "runtime resolution failed")
	})

	t.Run("RunnerErrorPropagates", func(t *testing.T) {
		runner := &MockProcessRunner{err: errors.New("spawn failed")}

		_, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{Code: "pass"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to run WASI runtime")
	})

	t.Run("TimeoutClampedToCeiling", func(t *testing.T) {
		runner := &MockProcessRunner{}
		_, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{
			Code:      "pass",
			TimeoutMs: 999_999,
		})
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, runner.lastSpec.Timeout)
	})

	t.Run("TimeoutDefaultedWhenUnset", func(t *testing.T) {
		runner := &MockProcessRunner{}
		_, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{Code: "pass"})
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, runner.lastSpec.Timeout)
	})

	t.Run("StdinForwarded", func(t *testing.T) {
		stdin := "abc\n"
		runner := &MockProcessRunner{}
		_, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{
			Code:  "print(input())",
			Stdin: &stdin,
		})
		require.NoError(t, err)
		require.NotNil(t, runner.lastSpec.Stdin)
		assert.Equal(t, "abc\n", *runner.lastSpec.Stdin)
	})

	t.Run("ResourceLimitsAssembled", func(t *testing.T) {
		runner := &MockProcessRunner{}
		_, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{Code: "pass"})
		require.NoError(t, err)

		limits := runner.lastSpec.Limits
		require.Len(t, limits, 5)
		assert.Equal(t, ResourceLimit{Kind: LimitCPUTime, Value: 2}, limits[0])
		assert.Equal(t, ResourceLimit{Kind: LimitAddressSpace, Value: 256 * 1024 * 1024}, limits[1])
		assert.Equal(t, ResourceLimit{Kind: LimitFileSize, Value: MaxChildFileSizeBytes}, limits[2])
		assert.Equal(t, ResourceLimit{Kind: LimitOpenFiles, Value: MaxChildOpenFiles}, limits[3])
		assert.Equal(t, ResourceLimit{Kind: LimitProcesses, Value: MaxChildProcesses}, limits[4])
	})

	t.Run("WorkDirCreatedAndCleaned", func(t *testing.T) {
		runner := &MockProcessRunner{}
		_, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{Code: "pass"})
		require.NoError(t, err)

		require.NotEmpty(t, runner.lastSpec.Dir)
		_, statErr := os.Stat(runner.lastSpec.Dir)
		assert.True(t, os.IsNotExist(statErr), "work dir should be removed after the call")
	})

	t.Run("InvocationUsesResolvedRuntime", func(t *testing.T) {
		runner := &MockProcessRunner{}
		_, err := newExecutor(runner).Execute(context.Background(), ExecuteRequest{Code: "print('hi')"})
		require.NoError(t, err)

		assert.Equal(t, "/usr/local/bin/wasmtime", runner.lastSpec.Path)
		require.NotEmpty(t, runner.lastSpec.Args)
		assert.Equal(t, "run", runner.lastSpec.Args[0])
		assert.Contains(t, runner.lastSpec.Args, "/opt/py/python.wasm")
	})
}

func TestLimitKindString(t *testing.T) {
	assert.Equal(t, "cpu_time", LimitCPUTime.String())
	assert.Equal(t, "address_space", LimitAddressSpace.String())
	assert.Equal(t, "file_size", LimitFileSize.String())
	assert.Equal(t, "open_files", LimitOpenFiles.String())
	assert.Equal(t, "processes", LimitProcesses.String())
	assert.Equal(t, "unknown", LimitKind(99).String())
}
