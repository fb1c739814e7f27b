package isolation

import (
	"context"
	"sync"

	"github.com/cuemby/kestrel/pkg/types"
)

// LaunchCall records one LaunchExecutor invocation the Fake received.
type LaunchCall struct {
	FrameworkID      string
	FrameworkInfo    types.FrameworkDescriptor
	ExecutorInfo     types.ExecutorInfo
	WorkDir          string
	InitialResources types.Resources
}

// Fake is a deterministic, in-memory Backend for tests. It never starts a
// real process: every call is recorded, and the test drives executor
// lifecycle callbacks explicitly by calling FireExecutorStarted or
// FireExecutorExited, and arranges usage samples with SetUsage.
type Fake struct {
	mu sync.Mutex

	callbacks Callbacks

	Launches        []LaunchCall
	Kills           []struct{ FrameworkID, ExecutorID string }
	ResourceChanges []struct {
		FrameworkID, ExecutorID string
		Resources               types.Resources
	}
	Priorities map[string]float64
	Samples    []struct{ FrameworkID, ExecutorID string }

	live  map[string]bool
	usage map[string]*types.ResourceUsage
}

// NewFake returns a Fake wired to deliver its callbacks to cb.
func NewFake(cb Callbacks) *Fake {
	return &Fake{
		callbacks:  cb,
		Priorities: make(map[string]float64),
		live:       make(map[string]bool),
		usage:      make(map[string]*types.ResourceUsage),
	}
}

func (f *Fake) LaunchExecutor(_ context.Context, frameworkID string, frameworkInfo types.FrameworkDescriptor, executorInfo types.ExecutorInfo, workDir string, initialResources types.Resources) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Launches = append(f.Launches, LaunchCall{frameworkID, frameworkInfo, executorInfo, workDir, initialResources})
	f.live[executorKey(frameworkID, executorInfo.ExecutorID)] = true
	return nil
}

func (f *Fake) KillExecutor(_ context.Context, frameworkID, executorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Kills = append(f.Kills, struct{ FrameworkID, ExecutorID string }{frameworkID, executorID})
	return nil
}

func (f *Fake) ResourcesChanged(_ context.Context, frameworkID, executorID string, newResources types.Resources) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResourceChanges = append(f.ResourceChanges, struct {
		FrameworkID, ExecutorID string
		Resources               types.Resources
	}{frameworkID, executorID, newResources})
	return nil
}

func (f *Fake) SetFrameworkPriorities(_ context.Context, priorities map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fid, p := range priorities {
		f.Priorities[fid] = p
	}
	return nil
}

func (f *Fake) SampleUsage(frameworkID, executorID string) {
	f.mu.Lock()
	f.Samples = append(f.Samples, struct{ FrameworkID, ExecutorID string }{frameworkID, executorID})
	usage := f.usage[executorKey(frameworkID, executorID)]
	f.mu.Unlock()

	if usage != nil {
		f.callbacks.SendUsageUpdate(types.UsageMessage{
			FrameworkID:  frameworkID,
			ExecutorID:   executorID,
			Usage:        *usage,
			StillRunning: true,
		})
	}
}

func (f *Fake) CollectResourceStatistics(_ context.Context, frameworkID, executorID string) (*types.ResourceUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage[executorKey(frameworkID, executorID)], nil
}

// SetUsage arranges for every later SampleUsage/CollectResourceStatistics
// call for an executor to return usage, until SetUsage is called again.
func (f *Fake) SetUsage(frameworkID, executorID string, usage types.ResourceUsage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage[executorKey(frameworkID, executorID)] = &usage
}

// FireExecutorStarted drives the ExecutorStarted callback as if the backend
// had just launched the process.
func (f *Fake) FireExecutorStarted(frameworkID, executorID string, pid int) {
	f.callbacks.ExecutorStarted(frameworkID, executorID, pid)
}

// FireExecutorExited drives the ExecutorExited callback as if the backend
// observed the process terminate.
func (f *Fake) FireExecutorExited(frameworkID, executorID string, rawExitStatus int) {
	f.mu.Lock()
	delete(f.live, executorKey(frameworkID, executorID))
	f.mu.Unlock()
	f.callbacks.ExecutorExited(frameworkID, executorID, rawExitStatus)
}

// IsLive reports whether the Fake still considers an executor launched and
// not yet exited.
func (f *Fake) IsLive(frameworkID, executorID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[executorKey(frameworkID, executorID)]
}
