package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolchat/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print a commented settings.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateSettingsTemplate())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(settingsPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "settings:     %s\n", settingsPath)
			fmt.Fprintf(out, "data dir:     %s\n", cfg.DataDir())
			fmt.Fprintf(out, "servers:      %s\n", cfg.ServersPath())
			fmt.Fprintf(out, "user:         %s\n", cfg.UserID)
			fmt.Fprintf(out, "tool timeout: %s\n", cfg.ToolTimeout)
			fmt.Fprintf(out, "debug:        %t\n", cfg.Debug || debug)
			return nil
		},
	})

	return cmd
}
