package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllocateWorkDirPicksNextUnusedRun(t *testing.T) {
	a, _, _, _ := newTestAgent(t)
	a.id = "slave-1"

	first, err := a.allocateWorkDir("fw-1", "exec-1")
	assert.NoError(t, err)
	assert.DirExists(t, first)
	assert.Equal(t, "0", filepath.Base(first))

	second, err := a.allocateWorkDir("fw-1", "exec-1")
	assert.NoError(t, err)
	assert.Equal(t, "1", filepath.Base(second))
	assert.NotEqual(t, first, second)
}

func TestAllocateWorkDirNoCreateReturnsFirstCandidateWithoutTouchingDisk(t *testing.T) {
	a, _, _, _ := newTestAgent(t)
	a.id = "slave-1"
	a.noCreateWorkDir = true

	dir, err := a.allocateWorkDir("fw-1", "exec-1")
	assert.NoError(t, err)
	assert.Equal(t, "0", filepath.Base(dir))
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "NoCreateWorkDir must never touch the filesystem")
}

func TestGcSlaveDirsSkipsOwnIDAndFreshDirectories(t *testing.T) {
	a, _, _, _ := newTestAgent(t)
	a.id = "slave-1"
	a.gcTimeout = time.Hour

	root := filepath.Join(a.workDir, "slaves")
	own := filepath.Join(root, "slave-1")
	stale := filepath.Join(root, "slave-stale")
	fresh := filepath.Join(root, "slave-fresh")
	for _, dir := range []string{own, stale, fresh} {
		assert.NoError(t, os.MkdirAll(dir, 0o755))
	}

	old := time.Now().Add(-2 * time.Hour)
	assert.NoError(t, os.Chtimes(stale, old, old))

	a.gcSlaveDirs()

	// scheduleDirGC for the stale dir fires with a zero delay in a goroutine;
	// give it a moment to run before asserting.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond, "a dir older than gcTimeout and not this slave's own must be removed")

	assert.DirExists(t, own, "a slave must never garbage collect its own directory")
	assert.DirExists(t, fresh, "a dir younger than gcTimeout must survive")
}

func TestScheduleDirGCRemovesDirectoryAfterDelay(t *testing.T) {
	a, _, _, _ := newTestAgent(t)

	dir := filepath.Join(a.workDir, "victim")
	assert.NoError(t, os.MkdirAll(dir, 0o755))

	a.scheduleDirGC(dir, 0)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}
