/*
Package agent implements the node agent's supervision kernel: a single
actor, Agent, that owns the in-memory model of frameworks, executors, and
tasks, drives their state machines, and brokers every message between the
master, the executors it supervises, and a pluggable isolation backend.

	Master --> Task Dispatcher --> Executor Supervisor --> isolation.Backend (launch)
	                                                              |
	                                                       Executor registers
	                                                              |
	                                                   tasks flow out, status
	                                                  updates flow back through
	                                                   the reliability engine
	                                                              |
	                                                            Master

Agent.Run drives a single actor loop: every exported message type (RunTask,
KillTask, StatusUpdate, RegisterExecutor, ...) implements an unexported
handle method, so the loop is one `msg.handle(a)` dispatch per inbox
receive. Handlers run to completion with no concurrent observer of the
registry, so nothing in this package needs a lock (see the concurrency
notes on Agent). Timers — registration retry, status-update retry, executor
shutdown-then-kill, the per-executor statistics poll — are modeled as
messages enqueued by time.AfterFunc rather than goroutines that mutate
state directly; a stale timer self-validates against current state (an
executor's uuid, a framework's updates map) rather than being cancelled.
The 1s usage-sampling tick is a ticker inside Run's own select loop, and
work-directory GC is a time.AfterFunc that only removes files and never
touches the registry.

The files split along the components in the agent's own design: agent.go
(actor loop and wiring), registry.go (Framework/Executor/Task ownership),
registration.go (master link), dispatch.go (RunTask/KillTask/ShutdownFramework),
reliability.go (status-update retry and acknowledgement), supervisor.go
(executor registration, shutdown, and exit), sampler.go (usage sampling),
and workdir.go (work directory allocation and GC).
*/
package agent
