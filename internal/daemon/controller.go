package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/vibefs/pkg/logger"
)

const defaultSpawnGrace = 300 * time.Millisecond

// ErrDaemonSpawnFailed indicates the spawned daemon exited within the grace interval.
var ErrDaemonSpawnFailed = errors.New("daemon: process exited immediately")

// Status describes the recorded daemon.
type Status struct {
	Running bool
	PID     int
}

// ServeParams are the arguments an auto-started daemon is launched with.
type ServeParams struct {
	Port int
	Host string
}

// Args renders the serve invocation.
func (p ServeParams) Args() []string {
	return []string{"serve", "--port", strconv.Itoa(p.Port), "--host", p.Host}
}

// StopResult is the outcome of Stop.
type StopResult int

const (
	// Stopped means the termination signal was delivered.
	Stopped StopResult = iota
	// NotRunning means no live daemon was recorded.
	NotRunning
	// StillRunning means the signal could not be delivered.
	StillRunning
)

func (r StopResult) String() string {
	switch r {
	case Stopped:
		return "stopped"
	case NotRunning:
		return "not_running"
	case StillRunning:
		return "still_running"
	default:
		return "unknown"
	}
}

// ControllerOption customises Controller behaviour.
type ControllerOption func(*Controller)

// WithSpawnGrace sets how long Start waits before checking the child survived.
func WithSpawnGrace(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.grace = d
		}
	}
}

// WithLogPath sets the file the daemon's output is appended to.
func WithLogPath(path string) ControllerOption {
	return func(c *Controller) {
		c.logPath = path
	}
}

// Controller starts, stops and inspects the serving daemon through its liveness record.
type Controller struct {
	pidFile *PIDFile
	spawner ProcessSpawner
	logPath string
	grace   time.Duration
}

// NewController constructs a Controller.
func NewController(pidFile *PIDFile, spawner ProcessSpawner, opts ...ControllerOption) (*Controller, error) {
	if pidFile == nil {
		return nil, errors.New("daemon controller: pid file is required")
	}
	if spawner == nil {
		return nil, errors.New("daemon controller: spawner is required")
	}

	controller := &Controller{
		pidFile: pidFile,
		spawner: spawner,
		grace:   defaultSpawnGrace,
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller, nil
}

// Status reports whether the recorded daemon is alive. A stale record is removed.
func (c *Controller) Status() Status {
	pid, err := c.pidFile.Read()
	if err != nil {
		if errors.Is(err, ErrInvalidPIDFile) {
			c.clearStale(0)
		}
		return Status{}
	}

	if !c.spawner.IsAlive(HandleForPID(pid)) {
		c.clearStale(pid)
		return Status{}
	}
	return Status{Running: true, PID: pid}
}

// Start launches `serve` in the background unless a live daemon is already recorded,
// and returns the daemon's pid.
func (c *Controller) Start(ctx context.Context, params ServeParams) (int, error) {
	if status := c.Status(); status.Running {
		return status.PID, nil
	}

	handle, err := c.spawner.Spawn(SpawnRequest{Args: params.Args(), LogPath: c.logPath})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDaemonSpawnFailed, err)
	}

	if c.grace > 0 {
		timer := time.NewTimer(c.grace)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return handle.PID, ctx.Err()
		case <-timer.C:
		}
	}

	if !c.spawner.IsAlive(handle) {
		return 0, fmt.Errorf("%w (pid %d), check %s", ErrDaemonSpawnFailed, handle.PID, c.logPath)
	}

	logger.WithModule("daemon").Info("daemon started",
		zap.Int("pid", handle.PID),
		zap.Int("port", params.Port),
		zap.String("host", params.Host),
	)
	return handle.PID, nil
}

// Stop sends SIGTERM to the recorded daemon.
func (c *Controller) Stop() (StopResult, error) {
	pid, err := c.pidFile.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NotRunning, nil
		}
		if errors.Is(err, ErrInvalidPIDFile) {
			c.clearStale(0)
			return NotRunning, nil
		}
		return NotRunning, err
	}

	err = c.spawner.Signal(HandleForPID(pid), syscall.SIGTERM)
	switch {
	case err == nil:
		return Stopped, nil
	case errors.Is(err, ErrProcessNotFound):
		c.clearStale(pid)
		return NotRunning, nil
	default:
		// Delivery failures are reported, not raised.
		logger.WithModule("daemon").Warn("failed to signal daemon", zap.Int("pid", pid), zap.Error(err))
		return StillRunning, nil
	}
}

func (c *Controller) clearStale(pid int) {
	if err := c.pidFile.Remove(); err != nil {
		logger.WithModule("daemon").Warn("failed to remove stale pid file",
			zap.Int("pid", pid),
			zap.String("path", c.pidFile.Path()),
			zap.Error(err),
		)
	}
}
