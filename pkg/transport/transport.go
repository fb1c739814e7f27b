// Package transport supplies the Agent's only two outbound protocol
// surfaces, MasterSink and ExecutorSink, and a peer-liveness monitor. Wire
// serialization and RPC framing are deliberately not this package's
// concern: it hands the agent core a codec-free contract and leaves how
// bytes actually move to whatever concrete sink a deployment wires in.
package transport

import (
	"context"

	"github.com/cuemby/kestrel/pkg/types"
)

// MasterSink is everything the agent ever sends to the master.
type MasterSink interface {
	RegisterSlave(ctx context.Context, msg types.RegisterSlaveMessage) error
	ReregisterSlave(ctx context.Context, msg types.ReregisterSlaveMessage) error
	StatusUpdate(ctx context.Context, msg types.StatusUpdateMessage) error
	ExecutorToFramework(ctx context.Context, msg types.ExecutorToFrameworkMessage) error
	ExitedExecutor(ctx context.Context, msg types.ExitedExecutorMessage) error
	Usage(ctx context.Context, msg types.UsageMessage) error
}

// ExecutorSink is everything the agent ever sends to a registered executor,
// addressed by the executor's peer id (the types.PeerID it registered with).
type ExecutorSink interface {
	ExecutorRegistered(ctx context.Context, executorPid string, msg types.ExecutorRegisteredMessage) error
	RunTask(ctx context.Context, executorPid string, msg types.RunTaskMessage) error
	KillTask(ctx context.Context, executorPid string, msg types.KillTaskMessage) error
	FrameworkToExecutor(ctx context.Context, executorPid string, msg types.FrameworkToExecutorMessage) error
	ShutdownExecutor(ctx context.Context, executorPid string, msg types.ShutdownExecutorMessage) error
}
