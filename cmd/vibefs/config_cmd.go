package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/charlesng35/vibefs/internal/app"
)

func (c *cli) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
	}
	cmd.AddCommand(c.configGetCommand(), c.configSetCommand())
	return cmd
}

func (c *cli) configGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print a config value (e.g. vibefs config get render.style)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := app.ResolvePaths()
			if err != nil {
				return err
			}

			key := args[0]
			value, ok, err := app.GetConfigValue(paths.ConfigFile, key)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", key)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func (c *cli) configSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a config value (e.g. vibefs config set render.style dracula)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := app.ResolvePaths()
			if err != nil {
				return err
			}
			if err := paths.Ensure(); err != nil {
				return err
			}

			value, err := app.SetConfigValue(paths.ConfigFile, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], value)
			return nil
		},
	}
}
