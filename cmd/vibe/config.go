package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vibe/vibe-go/internal/config"
	"github.com/vibe/vibe-go/internal/security"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := settingsPath()
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if cfg.Search.APIKey != "" {
			cfg.Search.APIKey = "(set)"
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "settings file: %s\n", path)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var setSearchKeyCmd = &cobra.Command{
	Use:   "set-search-key <api-key>",
	Short: "Store the YouTube Data API key encrypted in the settings file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := settingsPath()
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		sealed, err := security.NewSecretBox(filepath.Dir(path)).Seal(args[0])
		if err != nil {
			return err
		}
		cfg.Search.APIKey = sealed

		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "search API key saved")
		return nil
	},
}

func init() {
	configCmd.AddCommand(setSearchKeyCmd)
	rootCmd.AddCommand(configCmd)
}
