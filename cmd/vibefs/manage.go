package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlesng35/vibefs/internal/daemon"
	"github.com/charlesng35/vibefs/internal/models"
)

const listHashLength = 12

func (c *cli) revokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke TOKEN",
		Short: "Revoke access to a file or commit by its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := args[0]
			return c.withCommandStack(func(_ *environment, stack *commandStack) error {
				_, ok, err := stack.Authz.Revoke(cmd.Context(), token)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "Token not found: %s\n", token)
					return errReported
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked: %s\n", token)
				return nil
			})
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List authorized files and git commits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCommandStack(func(_ *environment, stack *commandStack) error {
				files, err := stack.Authz.ListFiles(cmd.Context())
				if err != nil {
					return err
				}
				commits, err := stack.Authz.ListGit(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				now := models.Timestamp(time.Now())
				home, _ := os.UserHomeDir()

				if len(files) > 0 {
					fmt.Fprintln(out, "Files:")
					for _, record := range files {
						fmt.Fprintf(out, "  %s  %s  [%s]\n", record.Token, record.FilePath, remaining(record.ExpiresAt, now))
					}
				}
				if len(commits) > 0 {
					fmt.Fprintln(out, "Git commits:")
					for _, record := range commits {
						fmt.Fprintf(out, "  %s  %s %s  [%s]\n",
							record.Token, tildePath(record.RepoPath, home), truncateHash(record.CommitHash), remaining(record.ExpiresAt, now))
					}
				}
				if len(files) == 0 && len(commits) == 0 {
					fmt.Fprintln(out, "No active authorizations.")
				}
				return nil
			})
		},
	}
}

func (c *cli) stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := c.controllerFor()
			if err != nil {
				return err
			}

			result, err := controller.Stop()
			if err != nil {
				return err
			}
			switch result {
			case daemon.Stopped:
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped.")
			case daemon.NotRunning:
				fmt.Fprintln(cmd.ErrOrStderr(), "Daemon is not running.")
			default:
				fmt.Fprintln(cmd.ErrOrStderr(), "Daemon could not be signalled.")
				return errReported
			}
			return nil
		},
	}
}

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check if the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := c.controllerFor()
			if err != nil {
				return err
			}

			if status := controller.Status(); status.Running {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon is running (pid %d).\n", status.PID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running.")
			}
			return nil
		},
	}
}

func (c *cli) controllerFor() (*daemon.Controller, error) {
	env, err := loadEnvironment()
	if err != nil {
		return nil, err
	}
	return c.newController(env)
}

func remaining(expiresAt, now float64) string {
	left := expiresAt - now
	if left <= 0 {
		return "expired"
	}
	return fmt.Sprintf("%ds remaining", int(left))
}

func truncateHash(hash string) string {
	if len(hash) > listHashLength {
		return hash[:listHashLength]
	}
	return hash
}

func tildePath(path, home string) string {
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rel, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return filepath.Join("~", rel)
	}
	return path
}
