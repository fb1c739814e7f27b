package isolation

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	containerdtypes "github.com/containerd/containerd/api/types"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/containers"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cuemby/kestrel/pkg/log"
	"github.com/cuemby/kestrel/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace kestrel's executors run in.
	DefaultNamespace = "kestrel"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// killGracePeriod is how long KillExecutor waits for SIGTERM to take
	// effect before escalating to SIGKILL.
	killGracePeriod = 10 * time.Second
)

// ContainerdBackend implements Backend against a containerd daemon: each
// executor becomes one containerd task in its own namespace.
type ContainerdBackend struct {
	client    *containerd.Client
	namespace string
	slaveID   string
	callbacks Callbacks

	mu         sync.Mutex
	executors  map[string]*runningExecutor
	priorities map[string]float64
}

type runningExecutor struct {
	containerID string
	task        containerd.Task
	resources   types.Resources
	lastUsage   *types.ResourceUsage
}

// NewContainerdBackend dials containerd at socketPath (DefaultSocketPath if
// empty) and returns a Backend that launches executors as containerd tasks.
// Callbacks is retained and invoked from the goroutines this backend starts
// internally (the exit-wait loop for each executor).
func NewContainerdBackend(socketPath string, callbacks Callbacks) (*ContainerdBackend, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %s: %w", socketPath, err)
	}

	return &ContainerdBackend{
		client:     client,
		namespace:  DefaultNamespace,
		callbacks:  callbacks,
		executors:  make(map[string]*runningExecutor),
		priorities: make(map[string]float64),
	}, nil
}

// SetSlaveID records the agent's own slave id, stamped into every executor's
// environment as KESTREL_SLAVE_ID. The agent calls this once, after it
// learns its id from SlaveRegistered.
func (b *ContainerdBackend) SetSlaveID(slaveID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slaveID = slaveID
}

// Close releases the containerd client connection.
func (b *ContainerdBackend) Close() error {
	return b.client.Close()
}

func executorKey(frameworkID, executorID string) string {
	return frameworkID + "/" + executorID
}

func (b *ContainerdBackend) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, b.namespace)
}

// LaunchExecutor pulls the executor's image, creates a container stamped
// with its coordinates, and starts it as a containerd task.
func (b *ContainerdBackend) LaunchExecutor(ctx context.Context, frameworkID string, frameworkInfo types.FrameworkDescriptor, executorInfo types.ExecutorInfo, workDir string, initialResources types.Resources) error {
	ctx = b.ctx(ctx)
	cmd := executorInfo.Command

	image, err := b.client.Pull(ctx, cmd.Image, containerd.WithPullUnpack)
	if err != nil {
		return fmt.Errorf("pull executor image %s: %w", cmd.Image, err)
	}

	b.mu.Lock()
	slaveID := b.slaveID
	b.mu.Unlock()

	env := make([]string, 0, len(cmd.Env)+4)
	for k, v := range cmd.Env {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"KESTREL_SLAVE_ID="+slaveID,
		"KESTREL_FRAMEWORK_ID="+frameworkID,
		"KESTREL_EXECUTOR_ID="+executorInfo.ExecutorID,
		"KESTREL_DIRECTORY="+workDir,
	)

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(env),
		oci.WithMounts([]specs.Mount{
			{
				Source:      workDir,
				Destination: "/kestrel/work",
				Type:        "bind",
				Options:     []string{"rbind", "rw"},
			},
		}),
	}
	if cmd.Value != "" {
		args := append([]string{cmd.Value}, cmd.Arguments...)
		opts = append(opts, oci.WithProcessArgs(args...))
	}
	if limits := resourceLimits(initialResources); limits != nil {
		opts = append(opts, withLinuxResources(limits))
	}

	containerID := containerName(frameworkID, executorInfo.ExecutorID)

	container, err := b.client.NewContainer(
		ctx,
		containerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(containerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return fmt.Errorf("create executor container: %w", err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("create executor task: %w", err)
	}

	statusC, err := task.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait on executor task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("start executor task: %w", err)
	}

	key := executorKey(frameworkID, executorInfo.ExecutorID)
	b.mu.Lock()
	b.executors[key] = &runningExecutor{
		containerID: containerID,
		task:        task,
		resources:   initialResources,
	}
	b.mu.Unlock()

	b.callbacks.ExecutorStarted(frameworkID, executorInfo.ExecutorID, int(task.Pid()))

	go b.awaitExit(frameworkID, executorInfo.ExecutorID, statusC)

	return nil
}

func (b *ContainerdBackend) awaitExit(frameworkID, executorID string, statusC <-chan containerd.ExitStatus) {
	status := <-statusC
	code, _, err := status.Result()
	if err != nil {
		logger := log.WithComponent("isolation")
		logger.Warn().Err(err).
			Str("framework_id", frameworkID).Str("executor_id", executorID).
			Msg("error reading executor exit status")
	}

	key := executorKey(frameworkID, executorID)
	b.mu.Lock()
	delete(b.executors, key)
	b.mu.Unlock()

	b.callbacks.ExecutorExited(frameworkID, executorID, int(code))
}

// KillExecutor sends SIGTERM, waits out the grace period, and escalates to
// SIGKILL if the task hasn't exited.
func (b *ContainerdBackend) KillExecutor(ctx context.Context, frameworkID, executorID string) error {
	ctx = b.ctx(ctx)

	b.mu.Lock()
	exec, ok := b.executors[executorKey(frameworkID, executorID)]
	b.mu.Unlock()
	if !ok {
		return nil
	}

	if err := exec.task.Kill(ctx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("SIGTERM executor: %w", err)
	}

	statusC, err := exec.task.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait on executor after SIGTERM: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, killGracePeriod)
	defer cancel()

	select {
	case <-statusC:
	case <-timeoutCtx.Done():
		if err := exec.task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("SIGKILL executor: %w", err)
		}
		<-statusC
	}

	return nil
}

// ResourcesChanged pushes a recomputed cgroup resource limit to the running
// task. There is no ordering guarantee relative to task dispatch reaching
// the executor through another channel.
func (b *ContainerdBackend) ResourcesChanged(ctx context.Context, frameworkID, executorID string, newResources types.Resources) error {
	ctx = b.ctx(ctx)

	b.mu.Lock()
	exec, ok := b.executors[executorKey(frameworkID, executorID)]
	if ok {
		exec.resources = newResources
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}

	limits := resourceLimits(newResources)
	if limits == nil {
		return nil
	}
	if err := exec.task.Update(ctx, containerd.WithResources(limits)); err != nil {
		return fmt.Errorf("update executor resources: %w", err)
	}
	return nil
}

// SetFrameworkPriorities records relative scheduling weight per framework.
// containerd has no native concept of cross-container scheduling priority
// below the cgroup cpu.shares a framework's own tasks already set through
// ResourcesChanged, so this only records the values; nothing in this backend
// reads them back or applies them to a kernel knob.
func (b *ContainerdBackend) SetFrameworkPriorities(ctx context.Context, priorities map[string]float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for fid, p := range priorities {
		b.priorities[fid] = p
	}
	return nil
}

// SampleUsage asks containerd for the executor's current metrics and pushes
// the result back through Callbacks.SendUsageUpdate. It does not block the
// caller.
func (b *ContainerdBackend) SampleUsage(frameworkID, executorID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		usage, err := b.CollectResourceStatistics(ctx, frameworkID, executorID)
		if err != nil || usage == nil {
			return
		}

		b.mu.Lock()
		exec, ok := b.executors[executorKey(frameworkID, executorID)]
		b.mu.Unlock()

		b.callbacks.SendUsageUpdate(types.UsageMessage{
			FrameworkID:  frameworkID,
			ExecutorID:   executorID,
			Expected:     exec.resources,
			Usage:        *usage,
			StillRunning: ok,
		})
	}()
}

// CollectResourceStatistics reads the live cgroup metrics for an executor's
// containerd task.
func (b *ContainerdBackend) CollectResourceStatistics(ctx context.Context, frameworkID, executorID string) (*types.ResourceUsage, error) {
	ctx = b.ctx(ctx)

	b.mu.Lock()
	exec, ok := b.executors[executorKey(frameworkID, executorID)]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no running executor %s/%s", frameworkID, executorID)
	}

	metrics, err := exec.task.Metrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("read executor metrics: %w", err)
	}

	usage := metricsToUsage(metrics, exec.resources)

	b.mu.Lock()
	exec.lastUsage = &usage
	b.mu.Unlock()

	return &usage, nil
}

func containerName(frameworkID, executorID string) string {
	return frameworkID + "-" + executorID
}

// withLinuxResources sets the container spec's cgroup resource limits.
func withLinuxResources(limits *specs.LinuxResources) oci.SpecOpts {
	return func(_ context.Context, _ oci.Client, _ *containers.Container, s *oci.Spec) error {
		if s.Linux == nil {
			s.Linux = &specs.Linux{}
		}
		s.Linux.Resources = limits
		return nil
	}
}

// resourceLimits converts a scalar resource vector into an OCI cgroup
// resource spec. Mirrors the teacher's CPU-shares/CFS-quota convention: one
// cpu == 1024 shares == a full 100000us quota period.
func resourceLimits(r types.Resources) *specs.LinuxResources {
	cpus, hasCPUs := r.Scalars["cpus"]
	mem, hasMem := r.Scalars["mem"]
	if !hasCPUs && !hasMem {
		return nil
	}

	limits := &specs.LinuxResources{}

	if hasCPUs {
		shares := uint64(cpus * 1024)
		period := uint64(100000)
		quota := int64(cpus * 100000)
		limits.CPU = &specs.LinuxCPU{
			Shares: &shares,
			Period: &period,
			Quota:  &quota,
		}
	}
	if hasMem {
		bytes := int64(mem) * 1024 * 1024
		limits.Memory = &specs.LinuxMemory{
			Limit: &bytes,
		}
	}
	return limits
}

// metricsToUsage converts containerd's raw task metrics into the agent's
// resource-usage sample shape. containerd.Metrics returns a typed Any
// payload keyed by runtime (v1/v2 cgroup stats messages). This function does
// not decode that payload: it reports the resource ceiling already known
// from ResourcesChanged and always leaves the sampled fields (CPU times,
// RSS) zero.
func metricsToUsage(_ *containerdtypes.Metric, expected types.Resources) types.ResourceUsage {
	return types.ResourceUsage{
		CPUsLimit:     expected.CPUs(),
		MemLimitBytes: uint64(expected.Mem()) * 1024 * 1024,
		SampledAt:     time.Now(),
	}
}
