package agent

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// allocateWorkDir returns the next unused runs/<i> directory under the
// executor's slot and creates it, unless noCreateWorkDir is set, in which
// case the first candidate path is returned verbatim without touching the
// filesystem.
func (a *Agent) allocateWorkDir(frameworkID, executorID string) (string, error) {
	base := filepath.Join(a.workDir, "slaves", a.id, "frameworks", frameworkID, "executors", executorID, "runs")

	for i := 0; ; i++ {
		candidate := filepath.Join(base, strconv.Itoa(i))
		if a.noCreateWorkDir {
			return candidate, nil
		}
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if err := os.MkdirAll(candidate, 0o755); err != nil {
				return "", err
			}
			return candidate, nil
		}
	}
}

// gcSlaveDirs lists the slaves root and schedules every directory that is
// neither this slave's own id nor younger than gcTimeout for deletion. It
// runs once, right after registration completes (spec §4.7).
func (a *Agent) gcSlaveDirs() {
	root := filepath.Join(a.workDir, "slaves")
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-a.gcTimeout)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == a.id {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		a.scheduleDirGC(filepath.Join(root, entry.Name()), 0)
	}
}

// scheduleDirGC recursively removes dir after delay. The Supervisor calls
// this with gcTimeout on executor death; gcSlaveDirs calls it with a zero
// delay for directories already past their cutoff.
func (a *Agent) scheduleDirGC(dir string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := os.RemoveAll(dir); err != nil {
			a.log.Warn().Err(err).Str("dir", dir).Msg("failed to garbage collect work directory")
		}
	})
}
