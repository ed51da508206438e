package app

import (
	"strings"

	"github.com/charlesng35/vibefs/pkg/logger"
)

// ConfigureLogging initialises the daemon logger: JSON entries on stdout, which
// the spawner redirects into the state directory log file.
func ConfigureLogging(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, logger.WithOutputPaths("stdout"))
}

// ConfigureCLILogging initialises console logging on stderr for short-lived commands,
// defaulting to warn so command output stays clean.
func ConfigureCLILogging(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "warn"
	}
	return logger.Init(level, logger.WithConsole(), logger.WithOutputPaths("stderr"))
}
