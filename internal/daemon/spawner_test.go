package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOSSpawnerLifecycle(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep binary not available")
	}

	spawner := &OSSpawner{executable: func() (string, error) { return sleep, nil }}
	logPath := filepath.Join(t.TempDir(), "logs", "vibefs.log")

	handle, err := spawner.Spawn(SpawnRequest{Args: []string{"30"}, LogPath: logPath})
	require.NoError(t, err)
	require.Positive(t, handle.PID)
	require.FileExists(t, logPath)

	require.True(t, spawner.IsAlive(handle))
	require.True(t, spawner.IsAlive(HandleForPID(handle.PID)))

	require.NoError(t, spawner.Signal(handle, syscall.SIGTERM))
	require.Eventually(t, func() bool { return !spawner.IsAlive(handle) }, 5*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, spawner.Signal(HandleForPID(handle.PID), syscall.SIGTERM), ErrProcessNotFound)
}

func TestOSSpawnerRejectsInvalidTargets(t *testing.T) {
	spawner := NewOSSpawner()

	require.False(t, spawner.IsAlive(HandleForPID(0)))
	require.ErrorIs(t, spawner.Signal(HandleForPID(0), syscall.SIGTERM), ErrProcessNotFound)
	require.ErrorContains(t, spawner.Signal(HandleForPID(os.Getpid()), customSignal{}), "unsupported signal")
}

type customSignal struct{}

func (customSignal) String() string { return "custom" }
func (customSignal) Signal()        {}
