// Package agent implements the node agent's supervision kernel: a single
// actor that owns the in-memory model of frameworks, executors, and tasks,
// drives their state machines, and brokers every interaction between the
// master, the executors it supervises, and the isolation backend that
// actually runs them.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/kestrel/pkg/isolation"
	"github.com/cuemby/kestrel/pkg/log"
	"github.com/cuemby/kestrel/pkg/metrics"
	"github.com/cuemby/kestrel/pkg/transport"
	"github.com/cuemby/kestrel/pkg/types"
)

const (
	registrationRetryInterval   = time.Second
	defaultStatusUpdateInterval = 3 * time.Second
	usageSampleInterval         = time.Second
	inboxCapacity               = 4096
)

// Config carries everything the Agent needs at construction time. Every
// field is immutable for the Agent's lifetime except Info.Resources, which
// never changes either in practice but is not re-validated after startup.
type Config struct {
	Info types.AgentInfo

	Isolation    isolation.Backend
	MasterSink   transport.MasterSink
	ExecutorSink transport.ExecutorSink
	PeerMonitor  *transport.PeerMonitor

	WorkDir                   string
	GCTimeout                 time.Duration
	ExecutorShutdownTimeout   time.Duration
	StatusUpdateRetryInterval time.Duration
	NoCreateWorkDir           bool

	// OnRegistered, if set, is invoked with the freshly assigned slave id
	// the moment registration completes. It runs on the actor goroutine,
	// so it must not block; it exists so callers that construct the
	// isolation backend before they know the slave id (SetSlaveID) can
	// learn it without polling the Agent.
	OnRegistered func(slaveID string)
}

// Agent is the supervision kernel. Every field below is touched exclusively
// from the actor goroutine started by Run; nothing here needs a lock. The
// only synchronized field is the inbox channel itself, which is safe for
// concurrent senders by construction.
type Agent struct {
	id         string // slave id; empty until the first successful registration
	connected  bool
	masterAddr string

	info types.AgentInfo

	frameworks map[string]*Framework

	isolation    isolation.Backend
	masterSink   transport.MasterSink
	executorSink transport.ExecutorSink
	peerMonitor  *transport.PeerMonitor

	workDir                   string
	gcTimeout                 time.Duration
	executorShutdownTimeout   time.Duration
	statusUpdateRetryInterval time.Duration
	noCreateWorkDir           bool
	onRegistered              func(slaveID string)

	inbox  chan message
	stopCh chan struct{}
	done   chan struct{}

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup

	log zerolog.Logger
}

// New constructs an Agent ready to Run. The isolation backend's callbacks
// must be wired to the returned Agent before Run is called, typically via
// isolation.NewContainerdBackend(cfg.Isolation-compatible-constructor, agent)
// or isolation.NewFake(agent) in tests.
func New(cfg Config) *Agent {
	interval := cfg.StatusUpdateRetryInterval
	if interval <= 0 {
		interval = defaultStatusUpdateInterval
	}

	return &Agent{
		info:                      cfg.Info,
		frameworks:                make(map[string]*Framework),
		isolation:                 cfg.Isolation,
		masterSink:                cfg.MasterSink,
		executorSink:              cfg.ExecutorSink,
		peerMonitor:               cfg.PeerMonitor,
		workDir:                   cfg.WorkDir,
		gcTimeout:                 cfg.GCTimeout,
		executorShutdownTimeout:   cfg.ExecutorShutdownTimeout,
		statusUpdateRetryInterval: interval,
		noCreateWorkDir:           cfg.NoCreateWorkDir,
		onRegistered:              cfg.OnRegistered,
		inbox:                     make(chan message, inboxCapacity),
		stopCh:                    make(chan struct{}),
		done:                      make(chan struct{}),
		log:                       log.WithComponent("agent"),
	}
}

// Run drives the actor loop until Stop is called or ctx is cancelled. It
// blocks; callers run it in its own goroutine.
func (a *Agent) Run(ctx context.Context) {
	defer close(a.done)

	usageTicker := time.NewTicker(usageSampleInterval)
	defer usageTicker.Stop()

	for {
		select {
		case msg := <-a.inbox:
			msg.handle(a)
		case <-usageTicker.C:
			a.queueUsageUpdates()
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the actor loop to exit and waits for it to drain.
func (a *Agent) Stop() {
	close(a.stopCh)
	<-a.done
}

// enqueue delivers msg onto the actor's inbox. Safe to call from any
// goroutine, including timer callbacks and isolation backend callbacks.
func (a *Agent) enqueue(msg message) {
	select {
	case a.inbox <- msg:
	case <-a.stopCh:
	}
}

// after arranges for msg to be enqueued once d has elapsed. Every timer that
// acts on registry state goes through here, apart from Run's own usage
// ticker; work-directory GC (scheduleDirGC) only removes files and runs in
// its own time.AfterFunc. Stale timers self-validate inside handle by
// re-checking state rather than being cancelled (spec §5).
func (a *Agent) after(d time.Duration, msg message) {
	time.AfterFunc(d, func() { a.enqueue(msg) })
}

// Send enqueues an externally-originated message (from the master, a
// framework driver, or an executor) onto the Agent's inbox. Transport
// adapters call this after decoding a wire message into its typed form.
func (a *Agent) Send(msg AgentMessage) {
	a.enqueue(msg)
}

// --- isolation.Callbacks ---

// ExecutorStarted implements isolation.Callbacks.
func (a *Agent) ExecutorStarted(frameworkID, executorID string, pid int) {
	a.enqueue(executorStartedMsg{frameworkID: frameworkID, executorID: executorID, pid: pid})
}

// ExecutorExited implements isolation.Callbacks.
func (a *Agent) ExecutorExited(frameworkID, executorID string, rawExitStatus int) {
	a.enqueue(executorExitedMsg{frameworkID: frameworkID, executorID: executorID, rawStatus: rawExitStatus})
}

// SendUsageUpdate implements isolation.Callbacks.
func (a *Agent) SendUsageUpdate(msg types.UsageMessage) {
	a.enqueue(backendUsageMsg{msg: msg})
}

// --- transport.PeerCallbacks ---

// NewMasterDetected implements transport.PeerCallbacks.
func (a *Agent) NewMasterDetected(addr string) {
	a.enqueue(newMasterDetectedMsg{addr: addr})
}

// MasterPeerLost implements transport.PeerCallbacks.
func (a *Agent) MasterPeerLost(addr string) {
	a.enqueue(masterPeerLostMsg{addr: addr})
}

// newUUID returns a fresh uuid for a status update or executor incarnation.
func newUUID() string {
	return uuid.NewString()
}

// setTaskState updates the per-state task gauge for a state transition. Pass
// an empty old state for a task's first observed state.
func setTaskState(old, newState types.TaskState) {
	if old != "" {
		metrics.TasksTotal.WithLabelValues(string(old)).Dec()
	}
	metrics.TasksTotal.WithLabelValues(string(newState)).Inc()
}
