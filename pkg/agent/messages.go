package agent

import "github.com/cuemby/kestrel/pkg/types"

// message is implemented by every value the Agent's inbox accepts. Handlers
// run to completion on the actor goroutine with no concurrent observers of
// the registry (spec §5).
type message interface {
	handle(a *Agent)
}

// AgentMessage is the type external callers use when handing a decoded
// inbound message to Agent.Send. A transport adapter constructs one of the
// exported message types below after decoding a wire message; internal
// timer and isolation-backend messages are never constructed outside this
// package.
type AgentMessage = message

// --- master-link messages (registration.go) ---

// NoMasterDetected reports that the master-discovery mechanism currently
// sees no master at all, as distinct from losing a previously-known one.
type NoMasterDetected struct{}

func (NoMasterDetected) handle(a *Agent) { a.handleNoMasterDetected() }

// SlaveRegistered is the master's reply to a Register, carrying the id the
// agent should adopt.
type SlaveRegistered struct {
	SlaveID string
}

func (m SlaveRegistered) handle(a *Agent) { a.handleSlaveRegistered(m.SlaveID) }

// SlaveReregistered is the master's reply to a ReregisterSlave.
type SlaveReregistered struct {
	SlaveID string
}

func (m SlaveReregistered) handle(a *Agent) { a.handleSlaveReregistered(m.SlaveID) }

type newMasterDetectedMsg struct{ addr string }

func (m newMasterDetectedMsg) handle(a *Agent) { a.handleNewMasterDetected(m.addr) }

type masterPeerLostMsg struct{ addr string }

func (m masterPeerLostMsg) handle(a *Agent) { a.handleMasterPeerLost(m.addr) }

type reliableRegisterTickMsg struct{}

func (reliableRegisterTickMsg) handle(a *Agent) { a.reliableRegister() }

// --- task dispatcher messages (dispatch.go) ---

// RunTask is a master-originated request to launch a task, optionally
// creating its framework and/or executor.
type RunTask struct {
	FrameworkID   string
	FrameworkInfo types.FrameworkDescriptor
	FrameworkPid  types.PeerID
	Task          types.TaskInfo
}

func (m RunTask) handle(a *Agent) { a.handleRunTask(m) }

// KillTask is a master-originated request to kill a task, wherever it is.
type KillTask struct {
	FrameworkID string
	TaskID      string
}

func (m KillTask) handle(a *Agent) { a.handleKillTask(m) }

// ShutdownFramework begins the graceful-shutdown protocol for every
// executor belonging to a framework.
type ShutdownFramework struct {
	FrameworkID string
}

func (m ShutdownFramework) handle(a *Agent) { a.handleShutdownFramework(m.FrameworkID) }

// FrameworkToExecutor relays an opaque scheduler payload to one of its
// executors, dropped if the executor has not yet registered.
type FrameworkToExecutor struct {
	FrameworkID string
	ExecutorID  string
	Data        []byte
}

func (m FrameworkToExecutor) handle(a *Agent) { a.handleFrameworkToExecutor(m) }

// UpdateFramework records a new driver pid for an already-known framework.
type UpdateFramework struct {
	FrameworkID string
	Pid         types.PeerID
}

func (m UpdateFramework) handle(a *Agent) { a.handleUpdateFramework(m) }

// FrameworkPriorities forwards relative executor scheduling priorities to
// the isolation backend, unmodified.
type FrameworkPriorities struct {
	Priorities map[string]float64
}

func (m FrameworkPriorities) handle(a *Agent) { a.handleFrameworkPriorities(m) }

// --- status-update reliability messages (reliability.go) ---

// StatusUpdate is an executor-originated task state transition report.
type StatusUpdate struct {
	Update types.StatusUpdate
}

func (m StatusUpdate) handle(a *Agent) { a.handleStatusUpdate(m.Update) }

// StatusUpdateAcknowledgement is the master's ack of a previously forwarded
// status update, identified by uuid.
type StatusUpdateAcknowledgement struct {
	SlaveID     string
	FrameworkID string
	TaskID      string
	UUID        string
}

func (m StatusUpdateAcknowledgement) handle(a *Agent) { a.handleStatusUpdateAcknowledgement(m) }

type statusUpdateTimeoutMsg struct {
	frameworkID string
	uuid        string
}

func (m statusUpdateTimeoutMsg) handle(a *Agent) { a.handleStatusUpdateTimeout(m.frameworkID, m.uuid) }

// --- executor supervisor messages (supervisor.go) ---

// RegisterExecutor is an executor's registration handshake, identifying
// itself and the peer the agent should address it at.
type RegisterExecutor struct {
	FrameworkID string
	ExecutorID  string
	Pid         types.PeerID
}

func (m RegisterExecutor) handle(a *Agent) { a.handleRegisterExecutor(m) }

// ExecutorToFramework relays an opaque executor payload to its framework's
// driver.
type ExecutorToFramework struct {
	FrameworkID string
	ExecutorID  string
	Data        []byte
}

func (m ExecutorToFramework) handle(a *Agent) { a.handleExecutorToFramework(m) }

type shutdownExecutorTimeoutMsg struct {
	frameworkID string
	executorID  string
	uuid        string
}

func (m shutdownExecutorTimeoutMsg) handle(a *Agent) {
	a.handleShutdownExecutorTimeout(m.frameworkID, m.executorID, m.uuid)
}

type executorStartedMsg struct {
	frameworkID string
	executorID  string
	pid         int
}

func (m executorStartedMsg) handle(a *Agent) {
	a.handleExecutorStarted(m.frameworkID, m.executorID, m.pid)
}

type executorExitedMsg struct {
	frameworkID string
	executorID  string
	rawStatus   int
}

func (m executorExitedMsg) handle(a *Agent) {
	a.handleExecutorExited(m.frameworkID, m.executorID, m.rawStatus)
}

// --- usage sampler messages (sampler.go) ---

type fetchStatisticsTickMsg struct {
	frameworkID string
	executorID  string
	previous    *types.ResourceUsage
}

func (m fetchStatisticsTickMsg) handle(a *Agent) {
	a.fetchStatistics(m.frameworkID, m.executorID, m.previous)
}

type gotStatisticsMsg struct {
	frameworkID string
	executorID  string
	previous    *types.ResourceUsage
	sample      *types.ResourceUsage
	err         error
}

func (m gotStatisticsMsg) handle(a *Agent) {
	a.gotStatistics(m.frameworkID, m.executorID, m.previous, m.sample, m.err)
}

type backendUsageMsg struct {
	msg types.UsageMessage
}

func (m backendUsageMsg) handle(a *Agent) { a.handleBackendUsage(m.msg) }

// --- lifecycle messages ---

// Shutdown asks the agent to stop. Its handler starts the graceful-shutdown
// protocol for every executor of every framework; it neither stops the actor
// loop nor exits the process, both of which are the caller's responsibility
// (Stop, then the process's own exit).
type Shutdown struct{}

func (Shutdown) handle(a *Agent) { a.handleShutdown() }

// Ping is answered with an immediate call to Respond, matching the "Ping
// replied to with PONG" surface from the inbound protocol. Respond is
// supplied by whatever transport adapter decoded the Ping, since the core
// has no generic reverse-addressing primitive of its own.
type Ping struct {
	Respond func()
}

func (m Ping) handle(a *Agent) {
	if m.Respond != nil {
		m.Respond()
	}
}
