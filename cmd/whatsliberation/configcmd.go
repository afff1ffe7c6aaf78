package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jlmalone/WhatsLiberation/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				path = filepath.Join(home, ".whatsliberation.toml")
			}

			if err := config.InitConfig(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and check the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			source := a.cfg.Source
			if source == "" {
				source = "defaults and environment"
			}
			fmt.Printf("Configuration OK (%s)\n", source)
			fmt.Printf("Profile: %s (%s)\n", a.profile.Name, a.profile.Package)
			fmt.Printf("Data directory: %s\n", a.cfg.General.DataDir)
			return nil
		},
	})

	return cmd
}
