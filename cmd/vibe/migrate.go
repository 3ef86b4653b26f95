package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibe/vibe-go/internal/migration"
	"github.com/vibe/vibe-go/internal/monitoring"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate-files",
	Short: "Rename title-named audio files to their id-based names",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		m := migration.NewMigrator(a.store, a.cfg.Download.DocumentsDir, monitoring.WithComponent(a.logger, "migration"))
		out := cmd.OutOrStdout()

		if migrateDryRun {
			legacy, missing, err := m.Detect()
			if err != nil {
				return err
			}
			for _, f := range legacy {
				note := ""
				if f.Conflict {
					note = " (shared by several items, skipped)"
				}
				fmt.Fprintf(out, "%s -> %s%s\n", f.OldPath, f.NewPath, note)
			}
			fmt.Fprintf(out, "%d legacy files, %d items without audio\n", len(legacy), missing)
			return nil
		}

		result := m.Migrate()
		fmt.Fprintf(out, "renamed %d, conflicts %d, missing %d\n", result.Renamed, result.Conflicts, result.Missing)
		for _, err := range result.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		}
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d files could not be migrated", len(result.Errors))
		}
		return nil
	}),
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "only list the files that would be renamed")
	rootCmd.AddCommand(migrateCmd)
}
