package agent

import (
	"testing"

	"github.com/cuemby/kestrel/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestHandleRegisterExecutorFlushesQueueInOrder(t *testing.T) {
	a, _, _, executorSink := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-2")})
	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-3")})

	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})

	assert.Len(t, executorSink.ExecutorRegisteredMsgs, 1, "ExecutorRegistered must be sent exactly once")
	assert.Len(t, executorSink.RunTasks, 3)
	assert.Equal(t, "task-1", executorSink.RunTasks[0].Task.TaskID)
	assert.Equal(t, "task-2", executorSink.RunTasks[1].Task.TaskID)
	assert.Equal(t, "task-3", executorSink.RunTasks[2].Task.TaskID)

	e := a.getFramework("fw-1").getExecutor("exec-1")
	assert.Empty(t, e.QueuedTasks)
	assert.Len(t, e.LaunchedTasks, 3)
}

func TestHandleRegisterExecutorShutsDownUnknownExecutor(t *testing.T) {
	a, _, _, executorSink := newTestAgent(t)

	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "no-such-framework", ExecutorID: "exec-1", Pid: "peer-1"})

	assert.Len(t, executorSink.ShutdownExecutors, 1)
	assert.Empty(t, executorSink.ExecutorRegisteredMsgs)
}

func TestHandleRegisterExecutorShutsDownAlreadyRegisteredExecutor(t *testing.T) {
	a, _, _, executorSink := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})

	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-2"})

	assert.Len(t, executorSink.ExecutorRegisteredMsgs, 1, "a second registration attempt must not re-register")
	assert.Len(t, executorSink.ShutdownExecutors, 1)
}

func TestShutdownExecutorArmsKillTimeoutGuardedByUUID(t *testing.T) {
	a, backend, _, executorSink := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})

	f := a.getFramework("fw-1")
	e := f.getExecutor("exec-1")
	staleUUID := e.UUID

	a.shutdownExecutor(f, e)
	assert.True(t, e.Shutdown)
	assert.Len(t, executorSink.ShutdownExecutors, 1)

	// Simulate the executor being replaced by a fresh incarnation under the
	// same id before the kill timer fires: the stale timer must be a no-op.
	a.destroyExecutor(f, e)
	replacement := newExecutor("exec-1", "fw-1", types.ExecutorInfo{}, "fresh-uuid", "/tmp")
	f.addExecutor(replacement)

	a.handleShutdownExecutorTimeout("fw-1", "exec-1", staleUUID)

	assert.Empty(t, backend.Kills, "a stale timer must not kill the replacement incarnation")
	assert.NotNil(t, f.getExecutor("exec-1"), "the replacement executor must survive the stale timer")
}

func TestHandleShutdownExecutorTimeoutKillsAndDestroys(t *testing.T) {
	a, backend, _, _ := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})

	f := a.getFramework("fw-1")
	e := f.getExecutor("exec-1")
	a.shutdownExecutor(f, e)

	a.handleShutdownExecutorTimeout("fw-1", "exec-1", e.UUID)

	assert.Len(t, backend.Kills, 1)
	assert.Nil(t, f.getExecutor("exec-1"))
	assert.Nil(t, a.getFramework("fw-1"), "the framework had no pending updates and must be destroyed")
}

func TestHandleExecutorExitedSynthesizesTerminalUpdatesForEveryTask(t *testing.T) {
	a, _, masterSink, _ := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-2")})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})

	a.handleExecutorExited("fw-1", "exec-1", 1)

	assert.Len(t, masterSink.StatusUpdates, 2)
	for _, u := range masterSink.StatusUpdates {
		assert.Equal(t, types.TaskLost, u.Update.State)
	}
	assert.Len(t, masterSink.ExitedExecutors, 1)
	assert.Nil(t, a.getFramework("fw-1").getExecutor("exec-1"))
}

func TestHandleExecutorExitedCoversStillQueuedTasks(t *testing.T) {
	a, _, masterSink, _ := newTestAgent(t)

	// Executor crashes before ever registering: both tasks are still in
	// QueuedTasks, never LaunchedTasks, when the exit arrives.
	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-2")})

	e := a.getFramework("fw-1").getExecutor("exec-1")
	assert.Empty(t, e.LaunchedTasks)
	assert.Len(t, e.QueuedTasks, 2)

	a.handleExecutorExited("fw-1", "exec-1", 1)

	assert.Len(t, masterSink.StatusUpdates, 2, "every still-queued task must get a terminal update too")
	seen := map[string]bool{}
	for _, u := range masterSink.StatusUpdates {
		assert.Equal(t, types.TaskLost, u.Update.State)
		seen[u.Update.TaskID] = true
	}
	assert.True(t, seen["task-1"])
	assert.True(t, seen["task-2"])
	assert.Len(t, masterSink.ExitedExecutors, 1)
}

func TestHandleExecutorExitedUsesFailedForCommandExecutorTasks(t *testing.T) {
	a, _, masterSink, _ := newTestAgent(t)

	task := types.TaskInfo{
		TaskID:      "task-1",
		FrameworkID: "fw-1",
		Command:     &types.Command{Value: "/bin/true"},
	}
	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: task})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "task-1", Pid: "peer-1"})

	a.handleExecutorExited("fw-1", "task-1", 1)

	last := masterSink.LastStatusUpdate()
	assert.Equal(t, types.TaskFailed, last.Update.State)
	assert.Empty(t, masterSink.ExitedExecutors, "a command executor's own exit is not separately reported")
}
