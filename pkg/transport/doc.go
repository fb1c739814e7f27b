/*
Package transport is the agent's boundary to the outside world: sending
protocol messages to the master and to executors, and watching a master's
liveness.

MasterSink and ExecutorSink are deliberately codec-free — the agent core
depends on these interfaces only, never on a wire format. PeerMonitor uses
grpc-go's built-in health-checking service to detect when a master goes
away, without requiring any protobuf code generation.

Fake implements both sink interfaces by recording every call, for use in
pkg/agent's tests.
*/
package transport
