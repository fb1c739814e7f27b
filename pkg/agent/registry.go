package agent

import (
	"github.com/cuemby/kestrel/pkg/metrics"
	"github.com/cuemby/kestrel/pkg/types"
)

// Framework is created lazily on first task assignment and destroyed once it
// has no executors and no pending status updates (spec invariant).
type Framework struct {
	ID         string
	Descriptor types.FrameworkDescriptor
	Pid        types.PeerID

	Executors map[string]*Executor
	Updates   map[string]types.StatusUpdate

	// taskIndex resolves a task id to the executor that owns it in O(1), for
	// the KillTask and StatusUpdate paths which only ever see a task id.
	taskIndex map[string]string
}

func newFramework(id string, descriptor types.FrameworkDescriptor, pid types.PeerID) *Framework {
	return &Framework{
		ID:         id,
		Descriptor: descriptor,
		Pid:        pid,
		Executors:  make(map[string]*Executor),
		Updates:    make(map[string]types.StatusUpdate),
		taskIndex:  make(map[string]string),
	}
}

// isEmpty reports whether the framework has no reason left to exist.
func (f *Framework) isEmpty() bool {
	return len(f.Executors) == 0 && len(f.Updates) == 0
}

func (f *Framework) getExecutor(executorID string) *Executor {
	return f.Executors[executorID]
}

// getExecutorForTask returns the executor owning taskID, or nil.
func (f *Framework) getExecutorForTask(taskID string) *Executor {
	eid, ok := f.taskIndex[taskID]
	if !ok {
		return nil
	}
	return f.Executors[eid]
}

func (f *Framework) addExecutor(e *Executor) {
	f.Executors[e.ID] = e
}

func (f *Framework) removeExecutor(executorID string) {
	delete(f.Executors, executorID)
}

// Executor is created when a task arrives for an id the framework doesn't
// yet know about, or from framework-supplied executor info. It exclusively
// owns every task dispatched to it, whether still queued or launched.
type Executor struct {
	ID          string
	FrameworkID string
	Info        types.ExecutorInfo

	// UUID is fresh per incarnation. A pending shutdown timer carries the
	// UUID it was scheduled under; if the executor has since been replaced
	// (same id, new incarnation) the timer's UUID will no longer match and
	// it becomes a no-op.
	UUID string

	Pid      types.PeerID // empty until the executor completes registration
	Shutdown bool
	WorkDir  string

	QueuedTasks   map[string]types.TaskInfo
	QueueOrder    []string // task ids in the order they were queued
	LaunchedTasks map[string]*types.Task
}

func newExecutor(id, frameworkID string, info types.ExecutorInfo, uuid, workDir string) *Executor {
	return &Executor{
		ID:            id,
		FrameworkID:   frameworkID,
		Info:          info,
		UUID:          uuid,
		WorkDir:       workDir,
		QueuedTasks:   make(map[string]types.TaskInfo),
		LaunchedTasks: make(map[string]*types.Task),
	}
}

func (e *Executor) isRegistered() bool {
	return e.Pid != ""
}

// isolationResources sums the resource vector of every task currently
// assigned to the executor, queued or launched, for resourcesChanged calls.
func (e *Executor) isolationResources() types.Resources {
	r := types.NewResources()
	for _, t := range e.QueuedTasks {
		r = r.Add(t.Resources)
	}
	for _, t := range e.LaunchedTasks {
		r = r.Add(t.Info.Resources)
	}
	return r
}

// getFramework resolves a framework id, returning nil if unknown.
func (a *Agent) getFramework(frameworkID string) *Framework {
	return a.frameworks[frameworkID]
}

// getOrCreateFramework returns the existing framework for id, updating its
// driver pid if it already exists, or creates a fresh one.
func (a *Agent) getOrCreateFramework(id string, descriptor types.FrameworkDescriptor, pid types.PeerID) *Framework {
	f, ok := a.frameworks[id]
	if ok {
		if pid != "" {
			f.Pid = pid
		}
		return f
	}
	f = newFramework(id, descriptor, pid)
	a.frameworks[id] = f
	metrics.FrameworksTotal.Inc()
	return f
}

// destroyFrameworkIfEmpty removes f from the registry once it has no reason
// left to exist, per the existence invariant in §3.
func (a *Agent) destroyFrameworkIfEmpty(f *Framework) {
	if f.isEmpty() {
		delete(a.frameworks, f.ID)
		metrics.FrameworksTotal.Dec()
	}
}

// addTask moves taskInfo into an executor's launchedTasks, indexing it on
// the owning framework for O(1) task-id lookup.
func (a *Agent) addTask(f *Framework, e *Executor, info types.TaskInfo, state types.TaskState) *types.Task {
	t := &types.Task{Info: info, State: state}
	e.LaunchedTasks[info.TaskID] = t
	f.taskIndex[info.TaskID] = e.ID
	return t
}

// removeTask drops a terminal task from an executor's launchedTasks and its
// framework's task index.
func (a *Agent) removeTask(f *Framework, e *Executor, taskID string) {
	delete(e.LaunchedTasks, taskID)
	delete(f.taskIndex, taskID)
}

// enqueueTask places a TaskInfo into an executor's queuedTasks, indexed the
// same way as a launched task so KillTask can find it before the executor
// has registered, and recorded in arrival order so RegisterExecutor flushes
// the queue in the order tasks were queued (spec §8 round-trip law).
func (a *Agent) enqueueTask(f *Framework, e *Executor, info types.TaskInfo) {
	e.QueuedTasks[info.TaskID] = info
	e.QueueOrder = append(e.QueueOrder, info.TaskID)
	f.taskIndex[info.TaskID] = e.ID
}

func (a *Agent) dequeueTask(f *Framework, e *Executor, taskID string) (types.TaskInfo, bool) {
	info, ok := e.QueuedTasks[taskID]
	if ok {
		delete(e.QueuedTasks, taskID)
		delete(f.taskIndex, taskID)
	}
	return info, ok
}

// drainQueueOrder returns queued TaskInfos in arrival order and clears the
// executor's queue entirely. Task ids already removed by a KillTask are
// skipped.
func (e *Executor) drainQueueOrder() []types.TaskInfo {
	drained := make([]types.TaskInfo, 0, len(e.QueueOrder))
	for _, taskID := range e.QueueOrder {
		info, ok := e.QueuedTasks[taskID]
		if !ok {
			continue
		}
		drained = append(drained, info)
	}
	e.QueuedTasks = make(map[string]types.TaskInfo)
	e.QueueOrder = nil
	return drained
}
