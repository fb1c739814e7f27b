package agent

import (
	"context"

	"github.com/cuemby/kestrel/pkg/metrics"
	"github.com/cuemby/kestrel/pkg/types"
)

// queueUsageUpdates implements spec §4.6's 1s tick: ask the isolation
// backend to sample usage for every registered, not-yet-shutdown executor.
// The backend answers asynchronously via Callbacks.SendUsageUpdate.
func (a *Agent) queueUsageUpdates() {
	for _, f := range a.frameworks {
		for _, e := range f.Executors {
			if !e.isRegistered() || e.Shutdown {
				continue
			}
			a.isolation.SampleUsage(f.ID, e.ID)
		}
	}
}

// fetchStatistics implements spec §4.6's independent poll/continuation
// chain, started by ExecutorStarted and re-armed after every sample while
// the executor is still live. The backend call runs off the actor goroutine
// so a slow backend never blocks message processing; its result comes back
// as a gotStatisticsMsg.
func (a *Agent) fetchStatistics(frameworkID, executorID string, previous *types.ResourceUsage) {
	backend := a.isolation
	go func() {
		timer := metrics.NewTimer()
		sample, err := backend.CollectResourceStatistics(context.Background(), frameworkID, executorID)
		timer.ObserveDuration(metrics.UsageSampleDuration)
		a.enqueue(gotStatisticsMsg{
			frameworkID: frameworkID,
			executorID:  executorID,
			previous:    previous,
			sample:      sample,
			err:         err,
		})
	}()
}

// gotStatistics implements spec §4.6's continuation: build and forward a
// UsageMessage, then re-arm fetchStatistics while the executor is present.
// A not-ready or error result simply suppresses this sample; if the
// executor is still around, the next tick retries.
func (a *Agent) gotStatistics(frameworkID, executorID string, previous, sample *types.ResourceUsage, err error) {
	f := a.getFramework(frameworkID)
	var e *Executor
	if f != nil {
		e = f.getExecutor(executorID)
	}
	stillRunning := e != nil && !e.Shutdown

	if err == nil && sample != nil {
		msg := types.UsageMessage{
			SlaveID:      a.id,
			FrameworkID:  frameworkID,
			ExecutorID:   executorID,
			Usage:        diffUsage(previous, *sample),
			StillRunning: stillRunning,
		}
		if e != nil {
			msg.Expected = e.isolationResources()
		}
		_ = a.masterSink.Usage(context.Background(), msg)
		previous = sample
	}

	if stillRunning {
		a.after(usageSampleInterval, fetchStatisticsTickMsg{
			frameworkID: frameworkID,
			executorID:  executorID,
			previous:    previous,
		})
	}
}

// diffUsage returns the usage delta against the previous sample, or the
// sample itself if there is no previous one yet.
func diffUsage(previous *types.ResourceUsage, sample types.ResourceUsage) types.ResourceUsage {
	if previous == nil {
		return sample
	}
	out := sample
	out.CPUsUserTime -= previous.CPUsUserTime
	out.CPUsSystemTime -= previous.CPUsSystemTime
	return out
}

// handleBackendUsage implements the backend's fire-and-forget
// sampleUsage → sendUsageUpdate push path: the agent only stamps its own
// slave id before forwarding (spec §6).
func (a *Agent) handleBackendUsage(msg types.UsageMessage) {
	msg.SlaveID = a.id
	_ = a.masterSink.Usage(context.Background(), msg)
}
