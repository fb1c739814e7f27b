package agent

import (
	"context"
	"time"

	"github.com/cuemby/kestrel/pkg/metrics"
	"github.com/cuemby/kestrel/pkg/types"
)

// handleStatusUpdate implements spec §4.4's inbound path for an
// executor-originated update: a task id that isn't indexed under the named
// framework is untrusted input and gets dropped. Agent-synthesized updates
// never go through here — see synthesizeUpdate in dispatch.go, which knows
// its own task by construction and has no index entry to validate against.
func (a *Agent) handleStatusUpdate(update types.StatusUpdate) {
	f := a.getFramework(update.FrameworkID)
	if f == nil {
		metrics.InvalidStatusUpdates.Inc()
		return
	}
	e := f.getExecutorForTask(update.TaskID)
	if e == nil {
		metrics.InvalidStatusUpdates.Inc()
		return
	}

	a.applyTaskTransition(f, e, update)
	a.recordAndForwardUpdate(f, update)
	metrics.ValidStatusUpdates.Inc()
}

// applyTaskTransition updates a launched task's recorded state, or just the
// gauge if the task is not among the executor's launched tasks (a task still
// queued behind an unregistered executor).
func (a *Agent) applyTaskTransition(f *Framework, e *Executor, update types.StatusUpdate) {
	if t, ok := e.LaunchedTasks[update.TaskID]; ok {
		old := t.State
		t.State = update.State
		setTaskState(old, update.State)
		if update.State.IsTerminal() {
			a.removeTask(f, e, update.TaskID)
			a.notifyResourcesChanged(e)
		}
	} else {
		setTaskState("", update.State)
	}
}

// recordAndForwardUpdate stamps, forwards, and tracks update for retry until
// acknowledged (spec §4.4). Shared by both the inbound and synthetic paths.
func (a *Agent) recordAndForwardUpdate(f *Framework, update types.StatusUpdate) {
	update.SlaveID = a.id
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	_ = a.masterSink.StatusUpdate(context.Background(), types.StatusUpdateMessage{Update: update})

	f.Updates[update.UUID] = update
	a.after(a.statusUpdateRetryInterval, statusUpdateTimeoutMsg{frameworkID: update.FrameworkID, uuid: update.UUID})
}

// handleStatusUpdateTimeout implements spec §4.4's retry: resend the stored
// update and re-arm, so long as it is still outstanding.
func (a *Agent) handleStatusUpdateTimeout(frameworkID, uuid string) {
	f := a.getFramework(frameworkID)
	if f == nil {
		return
	}
	update, ok := f.Updates[uuid]
	if !ok {
		return
	}

	_ = a.masterSink.StatusUpdate(context.Background(), types.StatusUpdateMessage{Update: update})
	metrics.StatusUpdateRetries.Inc()
	a.after(a.statusUpdateRetryInterval, statusUpdateTimeoutMsg{frameworkID: frameworkID, uuid: uuid})
}

// handleStatusUpdateAcknowledgement implements spec §4.4's ack path: erase
// the update, and destroy the framework if nothing references it anymore.
func (a *Agent) handleStatusUpdateAcknowledgement(m StatusUpdateAcknowledgement) {
	f := a.getFramework(m.FrameworkID)
	if f == nil {
		return
	}
	update, ok := f.Updates[m.UUID]
	if !ok {
		return
	}

	metrics.StatusUpdateAckDuration.Observe(time.Since(update.Timestamp).Seconds())
	delete(f.Updates, m.UUID)
	a.destroyFrameworkIfEmpty(f)
}
