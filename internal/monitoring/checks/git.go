package checks

import (
	"context"
	"time"

	"github.com/charlesng35/vibefs/internal/monitoring"
)

const defaultGitTimeout = 2 * time.Second

// GitVersioner reports the version of the git binary commit pages are read with.
type GitVersioner interface {
	Version(ctx context.Context) (string, error)
}

// Git returns a readiness probe for the git binary. A missing binary only degrades the
// daemon: file links keep working, commit links fail.
func Git(git GitVersioner, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("git", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultGitTimeout))
		defer cancel()

		version, err := git.Version(probeCtx)
		if err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: version, Duration: time.Since(start)}
	})
}
