package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/vibefs/internal/api"
	"github.com/charlesng35/vibefs/internal/app"
	"github.com/charlesng35/vibefs/internal/app/maintenance"
	"github.com/charlesng35/vibefs/internal/daemon"
	"github.com/charlesng35/vibefs/internal/database"
	"github.com/charlesng35/vibefs/internal/gitinfo"
	"github.com/charlesng35/vibefs/internal/handlers"
	"github.com/charlesng35/vibefs/internal/middleware"
	"github.com/charlesng35/vibefs/internal/monitoring"
	"github.com/charlesng35/vibefs/internal/monitoring/checks"
	"github.com/charlesng35/vibefs/internal/render"
	"github.com/charlesng35/vibefs/internal/services"
	"github.com/charlesng35/vibefs/pkg/logger"
)

const (
	sweepStopTimeout   = 5 * time.Second
	healthProbeTimeout = 2 * time.Second
)

// environment is the resolved state directory plus the loaded configuration.
type environment struct {
	Paths  app.Paths
	Config *app.Config
}

func loadEnvironment() (*environment, error) {
	paths, err := app.ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.Ensure(); err != nil {
		return nil, err
	}

	cfg, err := app.LoadConfig(paths)
	if err != nil {
		return nil, err
	}
	return &environment{Paths: paths, Config: cfg}, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   cfg.Database.Path,
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	db, err := database.OpenAndMigrate(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	logger.WithModule("database").Debug("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func newAuthorizationService(db *gorm.DB, cfg *app.Config) (*services.AuthorizationService, error) {
	authz, err := services.NewAuthorizationService(db, services.WithTokenBytes(cfg.Auth.TokenBytes))
	if err != nil {
		return nil, fmt.Errorf("initialise authorization service: %w", err)
	}
	return authz, nil
}

func (c *cli) newController(env *environment) (*daemon.Controller, error) {
	controller, err := daemon.NewController(
		daemon.NewPIDFile(env.Paths.PIDFile),
		c.spawner,
		daemon.WithSpawnGrace(env.Config.Daemon.SpawnGrace),
		daemon.WithLogPath(env.Paths.LogFile),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise daemon controller: %w", err)
	}
	return controller, nil
}

// commandStack bundles what the short-lived authorize and manage commands use.
type commandStack struct {
	DB         *gorm.DB
	Authz      *services.AuthorizationService
	Controller *daemon.Controller
	Issuance   *services.IssuanceService
}

func (c *cli) bootstrapCommand(env *environment) (*commandStack, error) {
	stack := &commandStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Close()
		}
	}()

	if stack.DB, err = initialiseDatabase(env.Config); err != nil {
		return nil, err
	}
	if stack.Authz, err = newAuthorizationService(stack.DB, env.Config); err != nil {
		return nil, err
	}
	if stack.Controller, err = c.newController(env); err != nil {
		return nil, err
	}

	stack.Issuance, err = services.NewIssuanceService(stack.Authz, stack.Controller,
		services.WithBaseURL(env.Config.BaseURL),
		services.WithDefaultTTL(env.Config.DefaultTTL()),
		services.WithDefaultPort(env.Config.Server.Port),
		services.WithBindHost(env.Config.Server.Host),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise issuance service: %w", err)
	}

	success = true
	return stack, nil
}

// Close releases the database handle.
func (s *commandStack) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return database.Close(s.DB)
}

// runtimeStack bundles the long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Authz     *services.AuthorizationService
	Renderer  *render.Registry
	RateStore *middleware.MemoryRateStore
	Sweep     *maintenance.AutoStopper
	Router    *gin.Engine
}

// bootstrapRuntime initialises the store, renderers, sweep and HTTP router. onIdle is
// invoked from the sweep once nothing is authorized anymore.
func bootstrapRuntime(cfg *app.Config, onIdle func()) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown()
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	if stack.DB, err = initialiseDatabase(cfg); err != nil {
		return nil, err
	}
	if stack.Authz, err = newAuthorizationService(stack.DB, cfg); err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	stack.Renderer, err = render.NewRegistry(render.Options{
		Style:       cfg.Render.Style,
		LineNumbers: cfg.Render.LineNumbers,
		Markdown:    cfg.Render.Markdown,
		HomeDir:     home,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise renderers: %w", err)
	}

	git := gitinfo.NewCLIReader()
	resources, err := handlers.NewResourceHandler(stack.Authz, git, stack.Renderer)
	if err != nil {
		return nil, err
	}

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(stack.DB, healthProbeTimeout))
	health.RegisterReadiness(checks.Git(git, healthProbeTimeout))

	stack.Sweep, err = maintenance.NewAutoStopper(stack.Authz,
		maintenance.WithInterval(cfg.Daemon.SweepInterval),
		maintenance.WithRetention(cfg.Daemon.ExpiredRetention),
		maintenance.WithOnIdle(onIdle),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise sweep: %w", err)
	}

	if cfg.Server.RateLimit.Requests > 0 {
		stack.RateStore = middleware.NewMemoryRateStore()
	}

	var rates middleware.RateStore
	if stack.RateStore != nil {
		rates = stack.RateStore
	}
	stack.Router, err = api.NewRouter(cfg, resources, health, rates)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops the sweep and releases resources.
func (s *runtimeStack) Shutdown() error {
	if s == nil {
		return nil
	}

	var err error
	if s.Sweep != nil {
		stopCtx := s.Sweep.Stop()
		timer := time.NewTimer(sweepStopTimeout)
		select {
		case <-stopCtx.Done():
		case <-timer.C:
			err = multierr.Append(err, fmt.Errorf("sweep did not stop within %s", sweepStopTimeout))
		}
		timer.Stop()
	}
	if s.RateStore != nil {
		err = multierr.Append(err, s.RateStore.Close())
	}
	if s.DB != nil {
		err = multierr.Append(err, database.Close(s.DB))
	}
	return err
}

// withCommandStack bootstraps a commandStack, runs fn against it and closes it.
func (c *cli) withCommandStack(fn func(env *environment, stack *commandStack) error) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	stack, err := c.bootstrapCommand(env)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			logger.WithModule("bootstrap").Warn("failed to close database", zap.Error(closeErr))
		}
	}()

	return fn(env, stack)
}
