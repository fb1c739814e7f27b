package transport

import (
	"context"
	"sync"

	"github.com/cuemby/kestrel/pkg/types"
)

// Fake records every message sent through it. Tests assert against its
// slices instead of standing up a real master or executor peer.
type Fake struct {
	mu sync.Mutex

	RegisterSlaves          []types.RegisterSlaveMessage
	ReregisterSlaves        []types.ReregisterSlaveMessage
	StatusUpdates           []types.StatusUpdateMessage
	ExecutorToFrameworkMsgs []types.ExecutorToFrameworkMessage
	ExitedExecutors         []types.ExitedExecutorMessage
	Usages                  []types.UsageMessage

	ExecutorRegisteredMsgs  []types.ExecutorRegisteredMessage
	RunTasks                []types.RunTaskMessage
	KillTasks               []types.KillTaskMessage
	FrameworkToExecutorMsgs []types.FrameworkToExecutorMessage
	ShutdownExecutors       []types.ShutdownExecutorMessage
}

// NewFake returns an empty recording Fake. It satisfies both MasterSink
// and ExecutorSink.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) RegisterSlave(_ context.Context, msg types.RegisterSlaveMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RegisterSlaves = append(f.RegisterSlaves, msg)
	return nil
}

func (f *Fake) ReregisterSlave(_ context.Context, msg types.ReregisterSlaveMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReregisterSlaves = append(f.ReregisterSlaves, msg)
	return nil
}

func (f *Fake) StatusUpdate(_ context.Context, msg types.StatusUpdateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusUpdates = append(f.StatusUpdates, msg)
	return nil
}

func (f *Fake) ExecutorToFramework(_ context.Context, msg types.ExecutorToFrameworkMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExecutorToFrameworkMsgs = append(f.ExecutorToFrameworkMsgs, msg)
	return nil
}

func (f *Fake) ExitedExecutor(_ context.Context, msg types.ExitedExecutorMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExitedExecutors = append(f.ExitedExecutors, msg)
	return nil
}

func (f *Fake) Usage(_ context.Context, msg types.UsageMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Usages = append(f.Usages, msg)
	return nil
}

func (f *Fake) ExecutorRegistered(_ context.Context, _ string, msg types.ExecutorRegisteredMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExecutorRegisteredMsgs = append(f.ExecutorRegisteredMsgs, msg)
	return nil
}

func (f *Fake) RunTask(_ context.Context, _ string, msg types.RunTaskMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RunTasks = append(f.RunTasks, msg)
	return nil
}

func (f *Fake) KillTask(_ context.Context, _ string, msg types.KillTaskMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KillTasks = append(f.KillTasks, msg)
	return nil
}

func (f *Fake) FrameworkToExecutor(_ context.Context, _ string, msg types.FrameworkToExecutorMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FrameworkToExecutorMsgs = append(f.FrameworkToExecutorMsgs, msg)
	return nil
}

func (f *Fake) ShutdownExecutor(_ context.Context, _ string, msg types.ShutdownExecutorMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShutdownExecutors = append(f.ShutdownExecutors, msg)
	return nil
}

// LastStatusUpdate returns the most recently recorded status update, or the
// zero value if none has been sent yet.
func (f *Fake) LastStatusUpdate() types.StatusUpdateMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.StatusUpdates) == 0 {
		return types.StatusUpdateMessage{}
	}
	return f.StatusUpdates[len(f.StatusUpdates)-1]
}
