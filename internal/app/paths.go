package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName = "config"
	configFileType = "yaml"
)

// Paths locates the persisted state: the store, the liveness record, the daemon
// log stream and the config file all live in one directory.
type Paths struct {
	Dir        string
	Database   string
	PIDFile    string
	LogFile    string
	ConfigFile string
}

// ResolvePaths returns the state layout rooted at $VIBEFS_HOME, or ~/.vibefs.
func ResolvePaths() (Paths, error) {
	dir := strings.TrimSpace(os.Getenv("VIBEFS_HOME"))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".vibefs")
	}
	return PathsAt(dir), nil
}

// PathsAt returns the state layout rooted at dir.
func PathsAt(dir string) Paths {
	return Paths{
		Dir:        dir,
		Database:   filepath.Join(dir, "vibefs.db"),
		PIDFile:    filepath.Join(dir, "vibefs.pid"),
		LogFile:    filepath.Join(dir, "vibefs.log"),
		ConfigFile: filepath.Join(dir, configFileName+"."+configFileType),
	}
}

// Ensure creates the state directory.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return nil
}
