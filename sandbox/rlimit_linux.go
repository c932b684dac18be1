//go:build linux

package sandbox

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// applyResourceLimits applies each limit to the already-started child via
// prlimit(2). Limits are independent and fail-soft: a kernel that rejects
// one leaves the rest in place and the execution proceeds.
func applyResourceLimits(pid int, limits []ResourceLimit, logger *zap.Logger) {
	for _, limit := range limits {
		resource, ok := rlimitResource(limit.Kind)
		if !ok {
			continue
		}
		rlim := unix.Rlimit{Cur: limit.Value, Max: limit.Value}
		if err := unix.Prlimit(pid, resource, &rlim, nil); err != nil {
			logger.Debug("skipping resource limit",
				zap.Stringer("kind", limit.Kind),
				zap.Uint64("value", limit.Value),
				zap.Error(err))
		}
	}
}

func rlimitResource(kind LimitKind) (int, bool) {
	switch kind {
	case LimitCPUTime:
		return unix.RLIMIT_CPU, true
	case LimitAddressSpace:
		return unix.RLIMIT_AS, true
	case LimitFileSize:
		return unix.RLIMIT_FSIZE, true
	case LimitOpenFiles:
		return unix.RLIMIT_NOFILE, true
	case LimitProcesses:
		return unix.RLIMIT_NPROC, true
	default:
		return 0, false
	}
}
