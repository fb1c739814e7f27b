// Package isolation defines the pluggable subsystem that actually launches,
// constrains, measures, and terminates executor processes. The agent core
// never imports a concrete backend; it only calls through the Backend
// interface and receives calls back through Callbacks.
package isolation

import (
	"context"

	"github.com/cuemby/kestrel/pkg/types"
)

// Backend is the isolation backend as seen by the agent core. Every method
// takes the caller's context for cancellation; only SampleUsage is
// explicitly fire-and-forget (the backend reports results later, via
// Callbacks.SendUsageUpdate, rather than through a return value).
type Backend interface {
	// LaunchExecutor starts a new executor for the given framework, under
	// workDir, with the resources it should initially be constrained to.
	LaunchExecutor(ctx context.Context, frameworkID string, frameworkInfo types.FrameworkDescriptor, executorInfo types.ExecutorInfo, workDir string, initialResources types.Resources) error

	// KillExecutor terminates an executor, forcefully if it does not exit on
	// its own within the backend's own grace period.
	KillExecutor(ctx context.Context, frameworkID, executorID string) error

	// ResourcesChanged notifies the backend that an executor's resource
	// entitlement has been recomputed. There is no ordering guarantee
	// relative to in-flight task dispatch to that executor.
	ResourcesChanged(ctx context.Context, frameworkID, executorID string, newResources types.Resources) error

	// SetFrameworkPriorities updates the relative scheduling priority the
	// backend should give each framework's executors.
	SetFrameworkPriorities(ctx context.Context, priorities map[string]float64) error

	// SampleUsage asks the backend to take a usage sample for an executor.
	// It does not block for the result; the backend pushes it later via
	// Callbacks.SendUsageUpdate.
	SampleUsage(frameworkID, executorID string)

	// CollectResourceStatistics returns the most recent usage sample for an
	// executor, or nil if none is available yet. A returned error suppresses
	// that sample; the caller retries on its own timer.
	CollectResourceStatistics(ctx context.Context, frameworkID, executorID string) (*types.ResourceUsage, error)
}

// Callbacks is how a Backend reports back into the agent. Every method is
// delivered onto the agent's own inbox, so it runs fully serialized with
// every other handler — a backend may call these from any goroutine.
type Callbacks interface {
	// ExecutorStarted reports that a launched executor's process now exists,
	// with the backend-assigned pid (or an opaque, backend-specific handle
	// for non-process isolation).
	ExecutorStarted(frameworkID, executorID string, pid int)

	// ExecutorExited reports that an executor's process has terminated,
	// carrying its raw exit status exactly as the backend observed it.
	ExecutorExited(frameworkID, executorID string, rawExitStatus int)

	// SendUsageUpdate delivers one resource-usage sample. The agent stamps
	// its own slave id and forwards the result to the master.
	SendUsageUpdate(msg types.UsageMessage)
}
