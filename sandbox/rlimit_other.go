//go:build !linux

package sandbox

import "go.uber.org/zap"

// Resource limits use prlimit(2) and are Linux-only. Elsewhere they are
// skipped entirely, which the sandbox treats as best-effort, not an error.
func applyResourceLimits(_ int, _ []ResourceLimit, _ *zap.Logger) {}
