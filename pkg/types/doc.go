/*
Package types defines the domain model shared by every piece of the kestrel
node agent: resource vectors, frameworks, executors, tasks, and the status
updates that flow back to the master.

# Core Types

Identity and capacity:
  - AgentInfo: hostname, public DNS override, resources, attributes
  - Resources: scalar/range/set multi-resource vector (cpus, mem, ports, ...)
  - Attributes: opaque key/value bag advertised alongside resources

Framework-side descriptors, as handed down by the master:
  - FrameworkDescriptor, ExecutorInfo, TaskInfo, Command

Agent-owned runtime state:
  - Task: a TaskInfo plus its current TaskState
  - TaskState: STAGING, STARTING, RUNNING, FINISHED, FAILED, KILLED, LOST
  - StatusUpdate: the retry unit the reliability engine resends until acked
  - ResourceUsage: one usage sample from the isolation backend

Framework, Executor, and Agent themselves (the owning containers with their
maps and indexes) live in pkg/agent, since they are actor-private state, not
values exchanged across the wire.

# Design notes

IsCommandExecutorTask is a derivation, not stored state: a task is a
"command executor" task purely because its TaskInfo carries its own Command,
never because anything set a flag on it.
*/
package types
