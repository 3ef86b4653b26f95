package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/search"
)

var searchDownload int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search YouTube videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		client := search.NewClient(a.searchKey, a.cfg.Search.RequestsPerSecond,
			a.cfg.Search.MaxResults, monitoring.WithComponent(a.logger, "search"))

		results, err := client.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		if searchDownload > 0 {
			if searchDownload > len(results) {
				return fmt.Errorf("result %d out of range (1-%d)", searchDownload, len(results))
			}
			r := results[searchDownload-1]
			item, err := a.library.Download(cmd.Context(), r.Link, r.Title, r.ThumbnailURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s  %s\n", item.ID, item.Title)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTITLE\tCHANNEL\tLINK")
		for i, r := range results {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, r.Title, r.ChannelTitle, r.Link)
		}
		return w.Flush()
	}),
}

func init() {
	searchCmd.Flags().IntVar(&searchDownload, "download", 0, "download the n-th result instead of listing")
	rootCmd.AddCommand(searchCmd)
}
