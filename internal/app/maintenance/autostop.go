package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/vibefs/internal/models"
	"github.com/charlesng35/vibefs/pkg/logger"
	"github.com/charlesng35/vibefs/pkg/metrics"
)

const defaultSweepInterval = 60 * time.Second

// Store is the view of the authorization store the sweep needs.
type Store interface {
	CountActive(ctx context.Context) (files, git int64, err error)
	PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AutoStopper periodically checks for unexpired authorizations and fires its idle
// callback once none remain.
type AutoStopper struct {
	store     Store
	cron      *cron.Cron
	interval  time.Duration
	retention time.Duration
	onIdle    func()
	log       *zap.Logger

	mu      sync.Mutex
	started bool
	idle    bool
}

// Option customises the AutoStopper.
type Option func(*AutoStopper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *AutoStopper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithInterval overrides how often the sweep runs.
func WithInterval(d time.Duration) Option {
	return func(s *AutoStopper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRetention enables purging of rows expired for longer than d.
func WithRetention(d time.Duration) Option {
	return func(s *AutoStopper) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithOnIdle sets the callback fired when no authorization is active. It runs on the
// sweep goroutine and must not block.
func WithOnIdle(fn func()) Option {
	return func(s *AutoStopper) {
		s.onIdle = fn
	}
}

// NewAutoStopper constructs an AutoStopper for store.
func NewAutoStopper(store Store, opts ...Option) (*AutoStopper, error) {
	if store == nil {
		return nil, errors.New("auto stopper: store is required")
	}

	stopper := &AutoStopper{
		store:    store,
		interval: defaultSweepInterval,
		log:      logger.WithModule("autostop"),
	}

	for _, opt := range opts {
		opt(stopper)
	}

	if stopper.cron == nil {
		stopper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return stopper, nil
}

// Start schedules the sweep.
func (s *AutoStopper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.RunOnce(context.Background())
	}))
	s.cron.Start()
	s.started = true
	return nil
}

// Stop halts the scheduler. The returned context is done once a running sweep finishes.
func (s *AutoStopper) Stop() context.Context {
	return s.cron.Stop()
}

// ShouldShutdown reports whether the store is provably empty of active authorizations.
// A failing store keeps the daemon running.
func (s *AutoStopper) ShouldShutdown(ctx context.Context) bool {
	files, git, err := s.store.CountActive(ctx)
	if err != nil {
		s.log.Warn("active authorization check failed", zap.Error(err))
		return false
	}

	metrics.ActiveAuthorizations.WithLabelValues(string(models.KindFile)).Set(float64(files))
	metrics.ActiveAuthorizations.WithLabelValues(string(models.KindGit)).Set(float64(git))
	return files+git == 0
}

// RunOnce performs one sweep and reports whether the idle callback fired. Once idle,
// later sweeps do nothing.
func (s *AutoStopper) RunOnce(ctx context.Context) bool {
	s.mu.Lock()
	if s.idle {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if s.retention > 0 {
		removed, err := s.store.PurgeExpired(ctx, s.retention)
		if err != nil {
			s.log.Warn("purge expired authorizations failed", zap.Error(err))
		} else if removed > 0 {
			s.log.Info("purged expired authorizations", zap.Int64("removed", removed))
		}
	}

	if !s.ShouldShutdown(ctx) {
		return false
	}

	s.mu.Lock()
	if s.idle {
		s.mu.Unlock()
		return false
	}
	s.idle = true
	s.mu.Unlock()

	s.log.Info("all authorizations expired, shutting down")
	s.cron.Stop()
	if s.onIdle != nil {
		s.onIdle()
	}
	return true
}
