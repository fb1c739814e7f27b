package agent

import (
	"testing"
	"time"

	"github.com/cuemby/kestrel/pkg/isolation"
	"github.com/cuemby/kestrel/pkg/transport"
	"github.com/cuemby/kestrel/pkg/types"
)

// newTestAgent builds an Agent wired to Fake isolation and transport
// backends, with the isolation Fake's callbacks looped back into the Agent
// exactly as cmd/kestrel-agent wires the real containerd backend.
func newTestAgent(t *testing.T) (a *Agent, backend *isolation.Fake, masterSink, executorSink *transport.Fake) {
	t.Helper()

	masterSink = transport.NewFake()
	executorSink = transport.NewFake()

	a = New(Config{
		Info:         types.AgentInfo{Hostname: "test-host"},
		MasterSink:   masterSink,
		ExecutorSink: executorSink,
		WorkDir:      t.TempDir(),
		GCTimeout:    0,
		// Long enough that the real timers agent.go arms never fire during a
		// test's lifetime; tests that exercise timeout behavior call the
		// handler directly instead of waiting on the clock.
		ExecutorShutdownTimeout:   time.Hour,
		StatusUpdateRetryInterval: time.Hour,
	})

	backend = isolation.NewFake(a)
	a.isolation = backend

	return a, backend, masterSink, executorSink
}

func basicFramework() types.FrameworkDescriptor {
	return types.FrameworkDescriptor{ID: "fw-1", Name: "test-framework"}
}

func basicTask(taskID string) types.TaskInfo {
	return types.TaskInfo{
		TaskID:      taskID,
		FrameworkID: "fw-1",
		ExecutorID:  "exec-1",
		Resources:   types.NewResources(),
	}
}
