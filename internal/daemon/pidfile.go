package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidPIDFile indicates the liveness record exists but does not hold a pid.
var ErrInvalidPIDFile = errors.New("daemon: invalid pid file")

// PIDFile is the liveness record of the serving daemon.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile stored at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the location of the record.
func (p *PIDFile) Path() string {
	return p.path
}

// Read returns the recorded pid. A missing record yields an error matching os.ErrNotExist.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}

	content := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(content)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPIDFile, content)
	}
	return pid, nil
}

// Write records pid, replacing any previous record atomically.
func (p *PIDFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("daemon: create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".vibefs-pid-*")
	if err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	return nil
}

// Remove deletes the record. A missing record is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("daemon: remove pid file: %w", err)
	}
	return nil
}

// RemoveIfOwned deletes the record only while it still holds pid, so an exiting daemon
// never removes the record of its successor.
func (p *PIDFile) RemoveIfOwned(pid int) error {
	recorded, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if errors.Is(err, ErrInvalidPIDFile) {
			return p.Remove()
		}
		return err
	}
	if recorded != pid {
		return nil
	}
	return p.Remove()
}
