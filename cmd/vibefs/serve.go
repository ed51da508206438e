package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/vibefs/internal/app"
	"github.com/charlesng35/vibefs/internal/daemon"
	"github.com/charlesng35/vibefs/pkg/logger"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type serveOptions struct {
	Port       int
	Host       string
	Foreground bool
}

func (c *cli) serveCommand() *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				opts.Port = env.Config.Server.Port
			}
			if !cmd.Flags().Changed("host") {
				opts.Host = env.Config.Server.Host
			}

			level := c.logLevel
			if level == "" {
				level = env.Config.Server.LogLevel
			}
			if err := app.ConfigureLogging(level); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			return runServer(cmd.Context(), env, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", app.DefaultPort, "port to listen on")
	cmd.Flags().StringVar(&opts.Host, "host", app.DefaultBindHost, "host to bind to")
	cmd.Flags().BoolVar(&opts.Foreground, "foreground", false, "keep running when every authorization has expired")
	return cmd
}

// runServer binds the listener, records the liveness file and serves until a stop
// signal, the idle sweep, or a server failure.
func runServer(ctx context.Context, env *environment, opts serveOptions, out io.Writer) error {
	log := logger.WithModule("bootstrap")

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	idle := make(chan struct{})
	var idleOnce sync.Once
	onIdle := func() {
		idleOnce.Do(func() { close(idle) })
	}

	stack, err := bootstrapRuntime(env.Config, onIdle)
	if err != nil {
		_ = listener.Close()
		return err
	}
	defer func() {
		if err := stack.Shutdown(); err != nil {
			log.Warn("runtime shutdown", zap.Error(err))
		}
	}()

	pid := os.Getpid()
	pidFile := daemon.NewPIDFile(env.Paths.PIDFile)
	if err := pidFile.Write(pid); err != nil {
		_ = listener.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	defer removePIDFile(pidFile, pid, log)

	if !opts.Foreground {
		if err := stack.Sweep.Start(); err != nil {
			_ = listener.Close()
			return fmt.Errorf("start sweep: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Handler:           stack.Router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	bound := listener.Addr().String()
	log.Info("server listening", zap.String("addr", bound), zap.Int("pid", pid), zap.Bool("foreground", opts.Foreground))
	fmt.Fprintf(out, "vibefs serving on http://%s (pid %d)\n", bound, pid)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case <-idle:
		log.Info("all authorizations expired, shutting down")
		removePIDFile(pidFile, pid, log)
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func removePIDFile(pidFile *daemon.PIDFile, pid int, log *zap.Logger) {
	if err := pidFile.RemoveIfOwned(pid); err != nil {
		log.Warn("failed to remove pid file", zap.String("path", pidFile.Path()), zap.Error(err))
	}
}
