package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

var (
	// ErrProcessNotFound indicates the target process does not exist.
	ErrProcessNotFound = errors.New("daemon: process not found")
	// ErrPermissionDenied indicates the process exists but cannot be signalled.
	ErrPermissionDenied = errors.New("daemon: permission denied")
)

// Handle identifies a process. Handles returned by Spawn also observe the child's exit.
type Handle struct {
	PID    int
	exited <-chan struct{}
}

// HandleForPID wraps a pid read from the liveness record.
func HandleForPID(pid int) Handle {
	return Handle{PID: pid}
}

// SpawnRequest describes a detached child running the current executable.
type SpawnRequest struct {
	Args    []string
	LogPath string
}

// ProcessSpawner starts, probes and signals OS processes.
type ProcessSpawner interface {
	Spawn(req SpawnRequest) (Handle, error)
	IsAlive(h Handle) bool
	Signal(h Handle, sig os.Signal) error
}

// OSSpawner implements ProcessSpawner for the host operating system.
type OSSpawner struct {
	executable func() (string, error)
}

// NewOSSpawner returns a spawner that re-executes the running binary.
func NewOSSpawner() *OSSpawner {
	return &OSSpawner{executable: os.Executable}
}

// Spawn starts the child in its own session with stdout and stderr appended to
// req.LogPath, and reaps it in the background.
func (s *OSSpawner) Spawn(req SpawnRequest) (Handle, error) {
	exe, err := s.executable()
	if err != nil {
		return Handle{}, fmt.Errorf("daemon: resolve executable: %w", err)
	}

	var logFile *os.File
	if req.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(req.LogPath), 0o700); err != nil {
			return Handle{}, fmt.Errorf("daemon: create log directory: %w", err)
		}
		logFile, err = os.OpenFile(req.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return Handle{}, fmt.Errorf("daemon: open log file: %w", err)
		}
		// The child keeps its own descriptor.
		defer logFile.Close()
	}

	cmd := exec.Command(exe, req.Args...)
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return Handle{}, fmt.Errorf("daemon: start %s: %w", exe, err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	return Handle{PID: cmd.Process.Pid, exited: exited}, nil
}

// IsAlive reports whether the process still exists. A process owned by another user
// counts as alive.
func (s *OSSpawner) IsAlive(h Handle) bool {
	if h.exited != nil {
		select {
		case <-h.exited:
			return false
		default:
			return true
		}
	}
	if h.PID <= 0 {
		return false
	}

	exists, err := process.PidExists(int32(h.PID))
	return err == nil && exists
}

// Signal delivers sig to the process.
func (s *OSSpawner) Signal(h Handle, sig os.Signal) error {
	unixSig, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("daemon: unsupported signal %v", sig)
	}
	if h.PID <= 0 {
		return ErrProcessNotFound
	}

	err := unix.Kill(h.PID, unixSig)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return ErrProcessNotFound
	case errors.Is(err, unix.EPERM):
		return ErrPermissionDenied
	default:
		return fmt.Errorf("daemon: signal %d: %w", h.PID, err)
	}
}
