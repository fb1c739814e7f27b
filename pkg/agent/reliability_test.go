package agent

import (
	"testing"

	"github.com/cuemby/kestrel/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestHandleStatusUpdateForwardsAndTracksForRetry(t *testing.T) {
	a, _, masterSink, _ := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})

	a.handleStatusUpdate(types.StatusUpdate{
		UUID:        "update-1",
		FrameworkID: "fw-1",
		TaskID:      "task-1",
		State:       types.TaskRunning,
	})

	assert.Len(t, masterSink.StatusUpdates, 1)
	last := masterSink.LastStatusUpdate()
	assert.Equal(t, "test-host", a.info.Hostname) // sanity: info survived construction
	assert.Equal(t, types.TaskRunning, last.Update.State)
	assert.Equal(t, a.id, last.Update.SlaveID)
	assert.False(t, last.Update.Timestamp.IsZero())

	f := a.getFramework("fw-1")
	assert.Contains(t, f.Updates, "update-1")

	e := f.getExecutor("exec-1")
	assert.Equal(t, types.TaskRunning, e.LaunchedTasks["task-1"].State)
}

func TestHandleStatusUpdateRemovesTerminalTaskAndRecomputesResources(t *testing.T) {
	a, backend, _, _ := newTestAgent(t)

	task := basicTask("task-1")
	task.Resources = types.Resources{Scalars: map[string]float64{"cpus": 1}}
	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: task})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})

	before := len(backend.ResourceChanges)

	a.handleStatusUpdate(types.StatusUpdate{
		UUID:        "update-1",
		FrameworkID: "fw-1",
		TaskID:      "task-1",
		State:       types.TaskFinished,
	})

	e := a.getFramework("fw-1").getExecutor("exec-1")
	assert.NotContains(t, e.LaunchedTasks, "task-1")
	assert.Greater(t, len(backend.ResourceChanges), before)
}

func TestHandleStatusUpdateDropsForUnknownTask(t *testing.T) {
	a, _, masterSink, _ := newTestAgent(t)

	a.getOrCreateFramework("fw-1", basicFramework(), "")
	a.handleStatusUpdate(types.StatusUpdate{UUID: "update-1", FrameworkID: "fw-1", TaskID: "ghost-task", State: types.TaskRunning})

	assert.Empty(t, masterSink.StatusUpdates)
}

func TestHandleStatusUpdateTimeoutResendsOutstandingUpdate(t *testing.T) {
	a, _, masterSink, _ := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})
	a.handleStatusUpdate(types.StatusUpdate{UUID: "update-1", FrameworkID: "fw-1", TaskID: "task-1", State: types.TaskRunning})

	assert.Len(t, masterSink.StatusUpdates, 1)

	a.handleStatusUpdateTimeout("fw-1", "update-1")
	assert.Len(t, masterSink.StatusUpdates, 2, "an outstanding update must be resent on timeout")
	assert.Equal(t, masterSink.StatusUpdates[0].Update.UUID, masterSink.StatusUpdates[1].Update.UUID)
}

func TestHandleStatusUpdateTimeoutIsNoOpOnceAcked(t *testing.T) {
	a, _, masterSink, _ := newTestAgent(t)

	a.handleRunTask(RunTask{FrameworkID: "fw-1", FrameworkInfo: basicFramework(), Task: basicTask("task-1")})
	a.handleRegisterExecutor(RegisterExecutor{FrameworkID: "fw-1", ExecutorID: "exec-1", Pid: "peer-1"})
	a.handleStatusUpdate(types.StatusUpdate{UUID: "update-1", FrameworkID: "fw-1", TaskID: "task-1", State: types.TaskRunning})

	a.handleStatusUpdateAcknowledgement(StatusUpdateAcknowledgement{FrameworkID: "fw-1", UUID: "update-1"})
	a.handleStatusUpdateTimeout("fw-1", "update-1")

	assert.Len(t, masterSink.StatusUpdates, 1, "an acked update must not be resent")
}

func TestHandleStatusUpdateAcknowledgementDestroysEmptyFramework(t *testing.T) {
	a, _, _, _ := newTestAgent(t)

	// Shutdown with no executors, simulating scenario S5's tail end: a
	// framework kept alive purely by one outstanding update.
	f := a.getOrCreateFramework("fw-1", basicFramework(), "")
	f.Updates["update-1"] = types.StatusUpdate{UUID: "update-1", FrameworkID: "fw-1"}

	a.handleStatusUpdateAcknowledgement(StatusUpdateAcknowledgement{FrameworkID: "fw-1", UUID: "update-1"})

	assert.Nil(t, a.getFramework("fw-1"))
}

func TestHandleStatusUpdateAcknowledgementKeepsFrameworkWithRemainingState(t *testing.T) {
	a, _, _, _ := newTestAgent(t)

	f := a.getOrCreateFramework("fw-1", basicFramework(), "")
	f.Updates["update-1"] = types.StatusUpdate{UUID: "update-1", FrameworkID: "fw-1"}
	f.Updates["update-2"] = types.StatusUpdate{UUID: "update-2", FrameworkID: "fw-1"}

	a.handleStatusUpdateAcknowledgement(StatusUpdateAcknowledgement{FrameworkID: "fw-1", UUID: "update-1"})

	assert.NotNil(t, a.getFramework("fw-1"))
	assert.NotContains(t, f.Updates, "update-1")
	assert.Contains(t, f.Updates, "update-2")
}
