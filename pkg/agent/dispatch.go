package agent

import (
	"context"

	"github.com/cuemby/kestrel/pkg/metrics"
	"github.com/cuemby/kestrel/pkg/types"
)

// deriveExecutorInfo resolves the ExecutorInfo a task should run under: the
// already-known executor's own info if one exists, the task's own command
// if it carries one (a command executor, spec glossary), or the framework's
// default executor template as a last resort.
func deriveExecutorInfo(task types.TaskInfo, descriptor types.FrameworkDescriptor, existing *Executor) types.ExecutorInfo {
	if existing != nil {
		return existing.Info
	}

	if task.IsCommandExecutorTask() {
		executorID := task.ExecutorID
		if executorID == "" {
			executorID = task.TaskID
		}
		return types.ExecutorInfo{
			ExecutorID:  executorID,
			FrameworkID: task.FrameworkID,
			Command:     *task.Command,
			Source:      "command",
		}
	}

	if descriptor.ExecutorDefault != nil {
		info := *descriptor.ExecutorDefault
		if task.ExecutorID != "" {
			info.ExecutorID = task.ExecutorID
		}
		return info
	}

	return types.ExecutorInfo{ExecutorID: task.ExecutorID, FrameworkID: task.FrameworkID}
}

func targetExecutorID(task types.TaskInfo) string {
	if task.ExecutorID != "" {
		return task.ExecutorID
	}
	return task.TaskID
}

// notifyResourcesChanged recomputes an executor's resource entitlement from
// its current task set and dispatches it to the isolation backend. There is
// no ordering guarantee relative to a subsequently dispatched RunTask
// reaching the executor (spec §4.3, an accepted race).
func (a *Agent) notifyResourcesChanged(e *Executor) {
	_ = a.isolation.ResourcesChanged(context.Background(), e.FrameworkID, e.ID, e.isolationResources())
}

// synthesizeUpdate builds and records a terminal status update for cases
// where the agent itself determines a task's terminal fate (no executor to
// ask, the executor is shutting down, or the task id is altogether unknown).
// It owns the framework's existence rather than going through
// handleStatusUpdate: the task is frequently not indexed by the time this
// runs (KillTask before registration dequeues it first; an unknown
// framework or task has no index entry to begin with), so validating
// against the index the way an inbound update must would silently drop
// exactly the updates spec §4.3 mandates be sent.
func (a *Agent) synthesizeUpdate(frameworkID, executorID, taskID string, state types.TaskState, reason string) {
	f := a.getOrCreateFramework(frameworkID, types.FrameworkDescriptor{ID: frameworkID}, "")
	update := types.StatusUpdate{
		UUID:        newUUID(),
		FrameworkID: frameworkID,
		SlaveID:     a.id,
		ExecutorID:  executorID,
		TaskID:      taskID,
		State:       state,
		Message:     reason,
	}

	if e := f.getExecutorForTask(taskID); e != nil {
		a.applyTaskTransition(f, e, update)
	} else {
		setTaskState("", state)
	}

	a.recordAndForwardUpdate(f, update)
	metrics.ValidStatusUpdates.Inc()
}

// handleRunTask implements spec §4.3 RunTask.
func (a *Agent) handleRunTask(m RunTask) {
	f := a.getOrCreateFramework(m.FrameworkID, m.FrameworkInfo, m.FrameworkPid)

	executorID := targetExecutorID(m.Task)
	existing := f.getExecutor(executorID)
	executorInfo := deriveExecutorInfo(m.Task, m.FrameworkInfo, existing)

	switch {
	case existing != nil && existing.Shutdown:
		a.synthesizeUpdate(m.FrameworkID, executorID, m.Task.TaskID, types.TaskLost,
			"executor is shutting down, task rejected")

	case existing != nil && !existing.isRegistered():
		a.enqueueTask(f, existing, m.Task)

	case existing != nil:
		setTaskState("", types.TaskStaging)
		a.addTask(f, existing, m.Task, types.TaskStaging)
		a.notifyResourcesChanged(existing)
		_ = a.executorSink.RunTask(context.Background(), string(existing.Pid), types.RunTaskMessage{
			FrameworkID:   m.FrameworkID,
			FrameworkInfo: m.FrameworkInfo,
			Task:          m.Task,
		})

	default:
		workDir, err := a.allocateWorkDir(m.FrameworkID, executorID)
		if err != nil {
			a.log.Error().Err(err).Str("framework_id", m.FrameworkID).Str("executor_id", executorID).
				Msg("failed to allocate executor work directory")
			a.synthesizeUpdate(m.FrameworkID, executorID, m.Task.TaskID, types.TaskLost, "failed to allocate work directory")
			return
		}

		e := newExecutor(executorID, m.FrameworkID, executorInfo, newUUID(), workDir)
		f.addExecutor(e)
		metrics.ExecutorsTotal.Inc()
		a.enqueueTask(f, e, m.Task)

		resources := e.isolationResources()
		err = a.isolation.LaunchExecutor(context.Background(), m.FrameworkID, m.FrameworkInfo, executorInfo, workDir, resources)
		if err != nil {
			a.log.Error().Err(err).Str("framework_id", m.FrameworkID).Str("executor_id", executorID).
				Msg("failed to launch executor")
			metrics.UpdateComponent("isolation", false, err.Error())
		} else {
			metrics.ExecutorLaunches.Inc()
			metrics.UpdateComponent("isolation", true, "")
		}
	}
}

// handleKillTask implements spec §4.3 KillTask.
func (a *Agent) handleKillTask(m KillTask) {
	f := a.getFramework(m.FrameworkID)
	if f == nil {
		// synthesizeUpdate creates the framework itself, giving the LOST
		// update somewhere to live until acked (spec §3, scenario S5).
		a.synthesizeUpdate(m.FrameworkID, "", m.TaskID, types.TaskLost, "unknown framework")
		return
	}

	e := f.getExecutorForTask(m.TaskID)
	if e == nil {
		a.synthesizeUpdate(m.FrameworkID, "", m.TaskID, types.TaskLost, "unknown task")
		return
	}

	if !e.isRegistered() {
		a.dequeueTask(f, e, m.TaskID)
		a.notifyResourcesChanged(e)
		a.synthesizeUpdate(m.FrameworkID, e.ID, m.TaskID, types.TaskKilled, "killed before executor registered")
		return
	}

	_ = a.executorSink.KillTask(context.Background(), string(e.Pid), types.KillTaskMessage{
		FrameworkID: m.FrameworkID,
		TaskID:      m.TaskID,
	})
}

// handleShutdownFramework implements spec §4.3 ShutdownFramework. Framework
// destruction is deferred until every executor is gone and every update has
// drained.
func (a *Agent) handleShutdownFramework(frameworkID string) {
	f := a.getFramework(frameworkID)
	if f == nil {
		return
	}
	for _, e := range f.Executors {
		a.shutdownExecutor(f, e)
	}
}

// handleFrameworkToExecutor implements spec §4.3 FrameworkMessage. Silently
// dropping messages to a not-yet-registered executor is part of the public
// contract (spec §9): frameworks must gate sending on their own
// executor-ready signal.
func (a *Agent) handleFrameworkToExecutor(m FrameworkToExecutor) {
	f := a.getFramework(m.FrameworkID)
	if f == nil {
		metrics.InvalidFrameworkMessages.Inc()
		return
	}
	e := f.getExecutor(m.ExecutorID)
	if e == nil || !e.isRegistered() {
		metrics.InvalidFrameworkMessages.Inc()
		return
	}

	_ = a.executorSink.FrameworkToExecutor(context.Background(), string(e.Pid), types.FrameworkToExecutorMessage{
		FrameworkID: m.FrameworkID,
		ExecutorID:  m.ExecutorID,
		Data:        m.Data,
	})
}

// handleUpdateFramework records a new driver pid for an already-known
// framework.
func (a *Agent) handleUpdateFramework(m UpdateFramework) {
	f := a.getFramework(m.FrameworkID)
	if f == nil {
		return
	}
	f.Pid = m.Pid
}

// handleFrameworkPriorities forwards relative executor priorities to the
// isolation backend unmodified.
func (a *Agent) handleFrameworkPriorities(m FrameworkPriorities) {
	_ = a.isolation.SetFrameworkPriorities(context.Background(), m.Priorities)
}

// handleExecutorToFramework implements the executor→framework relay half
// of spec §6's outbound surface.
func (a *Agent) handleExecutorToFramework(m ExecutorToFramework) {
	f := a.getFramework(m.FrameworkID)
	if f == nil {
		return
	}
	_ = a.masterSink.ExecutorToFramework(context.Background(), types.ExecutorToFrameworkMessage{
		FrameworkID: m.FrameworkID,
		ExecutorID:  m.ExecutorID,
		Data:        m.Data,
	})
}

// handleShutdown implements a graceful agent-wide stop: shut down every
// framework's executors before the caller tears down the actor loop.
func (a *Agent) handleShutdown() {
	for _, f := range a.frameworks {
		for _, e := range f.Executors {
			a.shutdownExecutor(f, e)
		}
	}
}
