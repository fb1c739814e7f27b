package config

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/kestrel/pkg/types"
)

const (
	defaultGCTimeoutHours              = 24 * 7
	defaultExecutorShutdownTimeoutSecs = 5 * 60
	defaultMemMiB                      = 1024
	publicDNSEnvVar                    = "KESTREL_PUBLIC_DNS"
)

// Config is the agent's recognized configuration surface, loaded from a
// YAML file and then filled in with auto-detected and default values.
type Config struct {
	// ResourceOverride overrides auto-detection entirely when set in the file.
	ResourceOverride *RawResources     `yaml:"resources,omitempty"`
	Attributes       map[string]string `yaml:"attributes,omitempty"`

	WorkDir                        string  `yaml:"work_dir"`
	WebUIPort                      int     `yaml:"webui_port"`
	GCTimeoutHours                 float64 `yaml:"gc_timeout_hours"`
	ExecutorShutdownTimeoutSeconds float64 `yaml:"executor_shutdown_timeout_seconds"`
	NoCreateWorkDir                bool    `yaml:"no_create_work_dir"`

	// PublicDNS is never read from the file; it comes from KESTREL_PUBLIC_DNS
	// so the webui hostname can differ per deployment without editing the
	// manifest.
	PublicDNS string `yaml:"-"`
}

// RawResources is the file's representation of a resource override: just
// the scalars a human is likely to want to pin (cpus, mem in MiB). Ranges
// and sets aren't override-able from the config file.
type RawResources struct {
	CPUs   float64 `yaml:"cpus"`
	MemMiB float64 `yaml:"mem_mib"`
}

// Load reads and parses path, then fills in defaults and auto-detected
// values for anything the file left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.WorkDir == "" {
		c.WorkDir = "/var/lib/kestrel"
	}
	if c.GCTimeoutHours <= 0 {
		c.GCTimeoutHours = defaultGCTimeoutHours
	}
	if c.ExecutorShutdownTimeoutSeconds <= 0 {
		c.ExecutorShutdownTimeoutSeconds = defaultExecutorShutdownTimeoutSecs
	}
	if c.Attributes == nil {
		c.Attributes = make(map[string]string)
	}
	c.PublicDNS = os.Getenv(publicDNSEnvVar)
}

// Resources resolves the final resource vector: the file's override if one
// was given, otherwise every detected cpu and the detected memory less a
// one-gigabyte headroom reservation (see detectMemMiB).
func (c *Config) Resources() types.Resources {
	r := types.NewResources()

	if c.ResourceOverride != nil {
		r.Scalars["cpus"] = c.ResourceOverride.CPUs
		r.Scalars["mem"] = c.ResourceOverride.MemMiB
		return r
	}

	r.Scalars["cpus"] = detectCPUs()
	r.Scalars["mem"] = detectMemMiB()
	return r
}

// detectCPUs reports the number of usable CPUs, defaulting to 1 if
// detection is ever unable to produce a positive count.
func detectCPUs() float64 {
	n := runtime.NumCPU()
	if n <= 0 {
		return 1
	}
	return float64(n)
}

// detectMemMiB reads total system memory from /proc/meminfo and subtracts
// 1024 MiB of headroom when there's more than that to spare, leaving room
// for the kernel and the agent's own process. Falls back to 1024 MiB on
// any read or parse failure.
func detectMemMiB() float64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return defaultMemMiB
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return defaultMemMiB
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return defaultMemMiB
		}
		mib := kb / 1024
		if mib > defaultMemMiB {
			mib -= defaultMemMiB
		}
		return mib
	}
	return defaultMemMiB
}
