package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlesng35/vibefs/internal/app"
	"github.com/charlesng35/vibefs/internal/daemon"
	"github.com/charlesng35/vibefs/internal/services"
)

type issueFlags struct {
	ttl  int
	port int
	host string
}

func (f *issueFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.ttl, "ttl", 0, "time-to-live in seconds (default: config file_ttl)")
	cmd.Flags().IntVar(&f.port, "port", app.DefaultPort, "port for URL generation")
	cmd.Flags().StringVar(&f.host, "host", app.DefaultURLHost, "host for URL generation")
}

// resolve applies config defaults for flags the user left alone.
func (f *issueFlags) resolve(cmd *cobra.Command, cfg *app.Config) (time.Duration, int, error) {
	port := f.port
	if !cmd.Flags().Changed("port") {
		port = cfg.Server.Port
	}

	if !cmd.Flags().Changed("ttl") {
		return 0, port, nil
	}
	if f.ttl <= 0 {
		return 0, 0, fmt.Errorf("%w: --ttl must be a positive number of seconds", services.ErrInvalidTTL)
	}
	return time.Duration(f.ttl) * time.Second, port, nil
}

func (c *cli) allowCommand() *cobra.Command {
	var flags issueFlags
	var head, tail int

	cmd := &cobra.Command{
		Use:   "allow PATH",
		Short: "Authorize a file, start the daemon if needed and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCommandStack(func(env *environment, stack *commandStack) error {
				ttl, port, err := flags.resolve(cmd, env.Config)
				if err != nil {
					return err
				}

				req := services.FileRequest{Path: args[0], TTL: ttl, Host: flags.host, Port: port}
				if cmd.Flags().Changed("head") {
					if head < 0 {
						return errors.New("--head must not be negative")
					}
					req.Head = &head
				}
				if cmd.Flags().Changed("tail") {
					if tail < 0 {
						return errors.New("--tail must not be negative")
					}
					req.Tail = &tail
				}

				issued, err := stack.Issuance.AuthorizeFile(cmd.Context(), req)
				if err != nil {
					return err
				}
				reportIssued(cmd.OutOrStdout(), cmd.ErrOrStderr(), issued, env.Paths.LogFile)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&head, "head", 0, "only show the first N lines")
	cmd.Flags().IntVar(&tail, "tail", 0, "only show the last N lines")
	return cmd
}

func (c *cli) allowGitCommand() *cobra.Command {
	var flags issueFlags

	cmd := &cobra.Command{
		Use:   "allow-git REPO COMMIT",
		Short: "Authorize a git commit for viewing and print its URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCommandStack(func(env *environment, stack *commandStack) error {
				ttl, port, err := flags.resolve(cmd, env.Config)
				if err != nil {
					return err
				}

				issued, err := stack.Issuance.AuthorizeGitCommit(cmd.Context(), services.GitRequest{
					RepoPath: args[0],
					Commit:   args[1],
					TTL:      ttl,
					Host:     flags.host,
					Port:     port,
				})
				if err != nil {
					return err
				}
				reportIssued(cmd.OutOrStdout(), cmd.ErrOrStderr(), issued, env.Paths.LogFile)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

// reportIssued prints the URL on stdout and everything else on stderr, so the URL can be
// captured by scripts.
func reportIssued(stdout, stderr io.Writer, issued services.Issued, logPath string) {
	fmt.Fprintln(stdout, issued.URL)

	if !issued.IsNew {
		fmt.Fprintln(stderr, "(existing authorization extended)")
	}

	switch {
	case issued.DaemonErr != nil && errors.Is(issued.DaemonErr, daemon.ErrDaemonSpawnFailed):
		fmt.Fprintf(stderr, "Warning: daemon process exited immediately, check %s\n", logPath)
	case issued.DaemonErr != nil:
		fmt.Fprintf(stderr, "Warning: could not start daemon: %v\n", issued.DaemonErr)
	case issued.DaemonStarted:
		fmt.Fprintf(stderr, "Daemon started (pid %d)\n", issued.DaemonPID)
	}
}
