// Package sandbox provides WASI-based code execution capabilities.
//
// The sandbox package implements the execution engine for running untrusted
// Python snippets inside a WASI interpreter module launched through an
// external runtime CLI (wasmtime by default). Each execution spawns exactly
// one child process with stdin/stdout/stderr pipes, applies best-effort OS
// resource limits, enforces the wall-clock timeout with a forceful kill,
// and captures output with a fixed per-stream cap.
//
// The package is not a security boundary: memory and filesystem isolation
// come from the WASI runtime itself. The resource limits here are
// defense-in-depth only.
//
// Usage:
//
//	executor := sandbox.NewWasiExecutor(logger, cfg)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Code:      "print('Hello, World!')",
//	    TimeoutMs: 2000,
//	})
package sandbox
