package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vibe/vibe-go/internal/monitoring"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report database, memory and external tool status as JSON",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		items, err := a.store.Count()
		if err != nil {
			items = -1
		}

		checker := monitoring.NewHealthChecker(version, a.db).
			WithTools(a.cfg.Resolver.FFprobeBinary)
		report := checker.Check(items, a.pipeline.ActiveJobs())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}),
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
