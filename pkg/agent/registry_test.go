package agent

import (
	"testing"

	"github.com/cuemby/kestrel/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestFrameworkIsEmpty(t *testing.T) {
	f := newFramework("fw-1", basicFramework(), "")
	assert.True(t, f.isEmpty())

	f.Executors["exec-1"] = newExecutor("exec-1", "fw-1", types.ExecutorInfo{}, "uuid-1", "/tmp")
	assert.False(t, f.isEmpty())

	delete(f.Executors, "exec-1")
	f.Updates["update-1"] = types.StatusUpdate{UUID: "update-1"}
	assert.False(t, f.isEmpty())
}

func TestGetOrCreateFrameworkReusesExisting(t *testing.T) {
	a, _, _, _ := newTestAgent(t)

	f1 := a.getOrCreateFramework("fw-1", basicFramework(), "driver-1")
	f2 := a.getOrCreateFramework("fw-1", basicFramework(), "")

	assert.Same(t, f1, f2)
	assert.Equal(t, types.PeerID("driver-1"), f2.Pid)
}

func TestGetOrCreateFrameworkUpdatesPid(t *testing.T) {
	a, _, _, _ := newTestAgent(t)

	a.getOrCreateFramework("fw-1", basicFramework(), "driver-1")
	f := a.getOrCreateFramework("fw-1", basicFramework(), "driver-2")

	assert.Equal(t, types.PeerID("driver-2"), f.Pid)
}

func TestDestroyFrameworkIfEmptyRemovesOnlyWhenEmpty(t *testing.T) {
	a, _, _, _ := newTestAgent(t)
	f := a.getOrCreateFramework("fw-1", basicFramework(), "")

	e := newExecutor("exec-1", "fw-1", types.ExecutorInfo{}, "uuid-1", "/tmp")
	f.addExecutor(e)

	a.destroyFrameworkIfEmpty(f)
	assert.NotNil(t, a.getFramework("fw-1"), "framework with a live executor must survive")

	f.removeExecutor("exec-1")
	a.destroyFrameworkIfEmpty(f)
	assert.Nil(t, a.getFramework("fw-1"), "framework with nothing left must be destroyed")
}

func TestEnqueueTaskPreservesArrivalOrder(t *testing.T) {
	f := newFramework("fw-1", basicFramework(), "")
	e := newExecutor("exec-1", "fw-1", types.ExecutorInfo{}, "uuid-1", "/tmp")
	f.addExecutor(e)

	a := &Agent{}
	a.enqueueTask(f, e, basicTask("task-1"))
	a.enqueueTask(f, e, basicTask("task-2"))
	a.enqueueTask(f, e, basicTask("task-3"))

	drained := e.drainQueueOrder()
	assert.Len(t, drained, 3)
	assert.Equal(t, "task-1", drained[0].TaskID)
	assert.Equal(t, "task-2", drained[1].TaskID)
	assert.Equal(t, "task-3", drained[2].TaskID)

	assert.Empty(t, e.QueuedTasks)
	assert.Empty(t, e.QueueOrder)
}

func TestDrainQueueOrderSkipsDequeuedTasks(t *testing.T) {
	f := newFramework("fw-1", basicFramework(), "")
	e := newExecutor("exec-1", "fw-1", types.ExecutorInfo{}, "uuid-1", "/tmp")
	f.addExecutor(e)

	a := &Agent{}
	a.enqueueTask(f, e, basicTask("task-1"))
	a.enqueueTask(f, e, basicTask("task-2"))
	a.dequeueTask(f, e, "task-1")

	drained := e.drainQueueOrder()
	assert.Len(t, drained, 1)
	assert.Equal(t, "task-2", drained[0].TaskID)
}

func TestGetExecutorForTaskResolvesThroughIndex(t *testing.T) {
	f := newFramework("fw-1", basicFramework(), "")
	e := newExecutor("exec-1", "fw-1", types.ExecutorInfo{}, "uuid-1", "/tmp")
	f.addExecutor(e)

	assert.Nil(t, f.getExecutorForTask("task-1"))

	a := &Agent{}
	a.addTask(f, e, basicTask("task-1"), types.TaskStaging)
	assert.Same(t, e, f.getExecutorForTask("task-1"))

	a.removeTask(f, e, "task-1")
	assert.Nil(t, f.getExecutorForTask("task-1"))
}

func TestIsolationResourcesSumsQueuedAndLaunched(t *testing.T) {
	f := newFramework("fw-1", basicFramework(), "")
	e := newExecutor("exec-1", "fw-1", types.ExecutorInfo{}, "uuid-1", "/tmp")
	f.addExecutor(e)

	queued := basicTask("task-1")
	queued.Resources = types.Resources{Scalars: map[string]float64{"cpus": 1}}
	launched := basicTask("task-2")
	launched.Resources = types.Resources{Scalars: map[string]float64{"cpus": 2}}

	a := &Agent{}
	a.enqueueTask(f, e, queued)
	a.addTask(f, e, launched, types.TaskRunning)

	assert.Equal(t, 3.0, e.isolationResources().CPUs())
}
