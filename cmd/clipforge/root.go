package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
)

func newRootCommand() *cobra.Command {
	var apiFlag string
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "clipforge",
		Short:         "Clipforge pipeline CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Base URL of the clipforged API")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	client := func() (*apiClient, error) {
		base, err := resolveBaseURL(apiFlag, configFlag)
		if err != nil {
			return nil, err
		}
		return newAPIClient(base), nil
	}

	rootCmd.AddCommand(newSubmitCommand(client))
	rootCmd.AddCommand(newStatusCommand(client))
	rootCmd.AddCommand(newClipsCommand(client))
	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}

// resolveBaseURL prefers the flag and falls back to the configured bind
// address.
func resolveBaseURL(apiFlag, configFlag string) (string, error) {
	if trimmed := strings.TrimSpace(apiFlag); trimmed != "" {
		return strings.TrimRight(trimmed, "/"), nil
	}
	cfg, err := config.Load(configFlag)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return "http://" + cfg.Paths.APIBind, nil
}
