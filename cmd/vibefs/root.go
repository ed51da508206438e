package main

import (
	"github.com/spf13/cobra"

	"github.com/charlesng35/vibefs/internal/app"
	"github.com/charlesng35/vibefs/internal/daemon"
)

// cli holds state shared by every command. The spawner is the only process boundary.
type cli struct {
	logLevel string
	spawner  daemon.ProcessSpawner
}

func newCLI(spawner daemon.ProcessSpawner) *cli {
	return &cli{spawner: spawner}
}

func (c *cli) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vibefs",
		Short:         "Share local files and git commits through short-lived URLs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// serve configures its own logger once the config is loaded.
			if cmd.Name() == "serve" {
				return nil
			}
			return app.ConfigureCLILogging(c.logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		c.serveCommand(),
		c.allowCommand(),
		c.allowGitCommand(),
		c.revokeCommand(),
		c.listCommand(),
		c.stopCommand(),
		c.statusCommand(),
		c.configCommand(),
	)
	return cmd
}
