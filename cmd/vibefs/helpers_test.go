package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/vibefs/internal/daemon"
)

// childSpawner pretends to launch `serve`: the "child" records its pid the way the real
// daemon does once it is listening.
type childSpawner struct {
	mu      sync.Mutex
	pidPath string
	nextPID int
	alive   map[int]bool
	spawned []daemon.SpawnRequest
	signals []os.Signal
}

func newChildSpawner(home string) *childSpawner {
	return &childSpawner{
		pidPath: filepath.Join(home, "vibefs.pid"),
		nextPID: 4241,
		alive:   map[int]bool{},
	}
}

func (s *childSpawner) Spawn(req daemon.SpawnRequest) (daemon.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spawned = append(s.spawned, req)
	s.nextPID++
	s.alive[s.nextPID] = true
	if err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(s.nextPID)), 0o600); err != nil {
		return daemon.Handle{}, err
	}
	return daemon.HandleForPID(s.nextPID), nil
}

func (s *childSpawner) IsAlive(h daemon.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive[h.PID]
}

func (s *childSpawner) Signal(h daemon.Handle, sig os.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals = append(s.signals, sig)
	if !s.alive[h.PID] {
		return daemon.ErrProcessNotFound
	}
	s.alive[h.PID] = false
	return nil
}

func (s *childSpawner) spawnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}

// setupHome points the state directory at a temp dir.
func setupHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("VIBEFS_HOME", home)
	t.Setenv("VIBEFS_DB", "")
	t.Setenv("VIBEFS_BASE_URL", "")
	t.Setenv("VIBEFS_DAEMON_SPAWN_GRACE", "0s")
	return home
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, spawner daemon.ProcessSpawner, args ...string) cliResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), newCLI(spawner), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func makeRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	return dir
}
