package agent

import (
	"context"

	"github.com/cuemby/kestrel/pkg/metrics"
	"github.com/cuemby/kestrel/pkg/types"
)

// handleRegisterExecutor implements spec §4.5's registration handshake.
func (a *Agent) handleRegisterExecutor(m RegisterExecutor) {
	f := a.getFramework(m.FrameworkID)
	if f == nil {
		a.sendShutdownExecutor(m.FrameworkID, m.ExecutorID, m.Pid)
		return
	}

	e := f.getExecutor(m.ExecutorID)
	if e == nil || e.isRegistered() || e.Shutdown {
		a.sendShutdownExecutor(m.FrameworkID, m.ExecutorID, m.Pid)
		return
	}

	e.Pid = m.Pid
	queued := e.drainQueueOrder()
	for _, info := range queued {
		a.addTask(f, e, info, types.TaskStaging)
	}
	a.notifyResourcesChanged(e)

	_ = a.executorSink.ExecutorRegistered(context.Background(), string(e.Pid), types.ExecutorRegisteredMessage{
		ExecutorInfo:  e.Info,
		FrameworkID:   f.ID,
		FrameworkInfo: f.Descriptor,
		SlaveID:       a.id,
		SlaveInfo:     a.info,
	})

	for _, info := range queued {
		setTaskState("", types.TaskStaging)
		_ = a.executorSink.RunTask(context.Background(), string(e.Pid), types.RunTaskMessage{
			FrameworkID:   f.ID,
			FrameworkInfo: f.Descriptor,
			Task:          info,
		})
	}
}

func (a *Agent) sendShutdownExecutor(frameworkID, executorID string, pid types.PeerID) {
	_ = a.executorSink.ShutdownExecutor(context.Background(), string(pid), types.ShutdownExecutorMessage{
		FrameworkID: frameworkID,
		ExecutorID:  executorID,
	})
}

// shutdownExecutor implements spec §4.5's graceful-shutdown half: ask
// nicely, mark the executor as shutting down, and arm the kill fallback.
func (a *Agent) shutdownExecutor(f *Framework, e *Executor) {
	_ = a.executorSink.ShutdownExecutor(context.Background(), string(e.Pid), types.ShutdownExecutorMessage{
		FrameworkID: f.ID,
		ExecutorID:  e.ID,
	})
	e.Shutdown = true
	a.after(a.executorShutdownTimeout, shutdownExecutorTimeoutMsg{
		frameworkID: f.ID,
		executorID:  e.ID,
		uuid:        e.UUID,
	})
}

// handleShutdownExecutorTimeout implements spec §4.5's timed kill. The uuid
// guard prevents a later incarnation of the same executor id from being
// killed by a stale timer left over from a previous incarnation.
func (a *Agent) handleShutdownExecutorTimeout(frameworkID, executorID, uuid string) {
	f := a.getFramework(frameworkID)
	if f == nil {
		return
	}
	e := f.getExecutor(executorID)
	if e == nil || e.UUID != uuid {
		return
	}

	if err := a.isolation.KillExecutor(context.Background(), frameworkID, executorID); err != nil {
		metrics.UpdateComponent("isolation", false, err.Error())
	} else {
		metrics.UpdateComponent("isolation", true, "")
	}
	a.scheduleDirGC(e.WorkDir, a.gcTimeout)
	a.destroyExecutor(f, e)

	a.destroyFrameworkIfEmpty(f)
}

// destroyExecutor removes e from its framework's registry, clearing every
// index entry for its tasks.
func (a *Agent) destroyExecutor(f *Framework, e *Executor) {
	for taskID := range e.LaunchedTasks {
		delete(f.taskIndex, taskID)
	}
	for taskID := range e.QueuedTasks {
		delete(f.taskIndex, taskID)
	}
	f.removeExecutor(e.ID)
	metrics.ExecutorsTotal.Dec()
}

// handleExecutorStarted implements the isolation backend's ExecutorStarted
// upcall: record the backend-assigned pid and start the usage sampling
// chain for this executor (spec §4.6).
func (a *Agent) handleExecutorStarted(frameworkID, executorID string, pid int) {
	a.log.Info().Str("framework_id", frameworkID).Str("executor_id", executorID).Int("pid", pid).
		Msg("executor process started")
	a.fetchStatistics(frameworkID, executorID, nil)
}

// handleExecutorExited implements spec §4.5's exit path: every non-terminal
// task the executor held, queued or launched, gets a synthesized terminal
// update, and the executor's directory is scheduled for GC.
func (a *Agent) handleExecutorExited(frameworkID, executorID string, rawStatus int) {
	f := a.getFramework(frameworkID)
	if f == nil {
		a.log.Warn().Str("framework_id", frameworkID).Str("executor_id", executorID).
			Msg("executorExited for unknown framework")
		return
	}
	e := f.getExecutor(executorID)
	if e == nil {
		a.log.Warn().Str("framework_id", frameworkID).Str("executor_id", executorID).
			Msg("executorExited for unknown executor")
		return
	}

	isCommandExecutor := false
	reason := "executor exited"

	for taskID, t := range e.LaunchedTasks {
		if t.State.IsTerminal() {
			continue
		}
		isCommandExecutor = isCommandExecutor || t.Info.IsCommandExecutorTask()
		a.synthesizeUpdate(frameworkID, executorID, taskID, terminalStateForExit(t.Info), reason)
	}
	for taskID, info := range e.QueuedTasks {
		isCommandExecutor = isCommandExecutor || info.IsCommandExecutorTask()
		a.synthesizeUpdate(frameworkID, executorID, taskID, terminalStateForExit(info), reason)
	}

	if !isCommandExecutor {
		_ = a.masterSink.ExitedExecutor(context.Background(), types.ExitedExecutorMessage{
			FrameworkID: frameworkID,
			ExecutorID:  executorID,
			Status:      rawStatus,
		})
	}

	clean := rawStatus == 0
	metrics.ExecutorExits.WithLabelValues(boolLabel(clean)).Inc()

	a.scheduleDirGC(e.WorkDir, a.gcTimeout)
	a.destroyExecutor(f, e)
	a.destroyFrameworkIfEmpty(f)
}

// terminalStateForExit picks FAILED for a command executor's own task,
// LOST otherwise (spec §9, "command executors").
func terminalStateForExit(info types.TaskInfo) types.TaskState {
	if info.IsCommandExecutorTask() {
		return types.TaskFailed
	}
	return types.TaskLost
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
