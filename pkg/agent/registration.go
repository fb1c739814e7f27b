package agent

import (
	"context"

	"github.com/cuemby/kestrel/pkg/metrics"
	"github.com/cuemby/kestrel/pkg/types"
)

// handleNewMasterDetected implements spec §4.1.1: adopt the new peer,
// start monitoring its liveness, and kick off reliable registration.
func (a *Agent) handleNewMasterDetected(addr string) {
	a.masterAddr = addr
	a.connected = false
	metrics.UpdateComponent("transport", false, "registering with "+addr)

	a.startWatching(addr)
	a.reliableRegister()
}

// handleNoMasterDetected implements spec §4.1.2: the id the agent already
// holds, if any, is never cleared — only the master link is.
func (a *Agent) handleNoMasterDetected() {
	a.stopWatching()
	a.masterAddr = ""
	a.connected = false
	metrics.UpdateComponent("transport", false, "no master detected")
}

// handleMasterPeerLost implements spec §4.1.6: keep serving locally and
// wait for a new master to appear. Suicide-after-timeout is a non-goal.
func (a *Agent) handleMasterPeerLost(addr string) {
	a.log.Warn().Str("addr", addr).Msg("master peer lost, continuing to serve locally")
	if addr == a.masterAddr {
		a.connected = false
		metrics.UpdateComponent("transport", false, "master peer lost: "+addr)
	}
}

// startWatching cancels any previous peer watch and starts a new one, if a
// PeerMonitor was wired in. Watching is best-effort: nothing about
// reliableRegister depends on it succeeding.
func (a *Agent) startWatching(addr string) {
	a.stopWatching()
	if a.peerMonitor == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	a.watchWG.Add(1)
	go func() {
		defer a.watchWG.Done()
		if err := a.peerMonitor.Watch(ctx, addr); err != nil && ctx.Err() == nil {
			a.log.Warn().Err(err).Str("addr", addr).Msg("peer watch ended")
		}
	}()
}

func (a *Agent) stopWatching() {
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchCancel = nil
	}
}

// reliableRegister implements spec §4.1.3: a tail-recursive (here,
// timer-rearmed) send of Register or ReregisterSlave until the master
// acknowledges by way of SlaveRegistered/SlaveReregistered.
func (a *Agent) reliableRegister() {
	if a.connected || a.masterAddr == "" {
		return
	}

	ctx := context.Background()
	if a.id == "" {
		_ = a.masterSink.RegisterSlave(ctx, types.RegisterSlaveMessage{Info: a.info})
	} else {
		executors, tasks := a.snapshotState()
		_ = a.masterSink.ReregisterSlave(ctx, types.ReregisterSlaveMessage{
			SlaveID:   a.id,
			Info:      a.info,
			Executors: executors,
			Tasks:     tasks,
		})
	}

	a.after(registrationRetryInterval, reliableRegisterTickMsg{})
}

// snapshotState collects every known executor (its ExecutorInfo stamped with
// the owning framework's id) and launched task across all frameworks, for
// ReregisterSlave to hand a failed-over master a full view of this agent's
// live state (spec §8, scenario S6). Queued tasks are omitted: the executor
// they belong to hasn't registered yet, so the master already expects them
// to arrive as ordinary RunTasks once it does.
func (a *Agent) snapshotState() ([]types.ExecutorInfo, []types.TaskInfo) {
	var executors []types.ExecutorInfo
	var tasks []types.TaskInfo
	for _, f := range a.frameworks {
		for _, e := range f.Executors {
			info := e.Info
			info.FrameworkID = f.ID
			executors = append(executors, info)
			for _, t := range e.LaunchedTasks {
				tasks = append(tasks, t.Info)
			}
		}
	}
	return executors, tasks
}

// handleSlaveRegistered implements spec §4.1.4.
func (a *Agent) handleSlaveRegistered(slaveID string) {
	a.id = slaveID
	a.connected = true
	metrics.UpdateComponent("transport", true, "")
	a.gcSlaveDirs()
	if a.onRegistered != nil {
		a.onRegistered(slaveID)
	}
}

// handleSlaveReregistered implements spec §4.1.5. A mismatched slave id is
// an invariant violation and fatal (spec §7).
func (a *Agent) handleSlaveReregistered(slaveID string) {
	if slaveID != a.id {
		a.log.Fatal().Str("got", slaveID).Str("want", a.id).
			Msg("master reregistered agent under a different slave id")
	}
	a.connected = true
	metrics.UpdateComponent("transport", true, "")
}
