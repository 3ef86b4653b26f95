package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibe/vibe-go/internal/download"
	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/store"
)

var (
	acquireTitle string
	acquireCover string
	importName   string
	listPlaylist string
	deleteForce  bool
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <link>",
	Short: "Download the audio of a YouTube link into the library",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		done := watchProgress(a.registry, cmd.ErrOrStderr())
		item, err := a.library.Download(ctx, args[0], acquireTitle, acquireCover)
		done()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "saved %s  %s\n", item.ID, item.Title)
		return nil
	}),
}

var importCmd = &cobra.Command{
	Use:   "import <playlist-link>",
	Short: "Download every video of a YouTube playlist into a new playlist",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		done := watchProgress(a.registry, cmd.ErrOrStderr())
		result, err := a.library.ImportPlaylist(ctx, args[0], importName)
		done()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "playlist %s  %s: %d imported, %d failed\n",
			result.Playlist.ID, result.Playlist.Name, len(result.Items), len(result.Failures))
		for _, f := range result.Failures {
			fmt.Fprintf(out, "  failed %s (%s): %v\n", f.Title, f.Link, f.Err)
		}
		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List library items",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		scope := store.AllItems
		if listPlaylist != "" {
			scope = store.Scope{PlaylistID: listPlaylist}
		}

		items, err := a.library.List(scope)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tDURATION\tADDED")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Title,
				formatSeconds(item.DurationSeconds), item.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <item-id>",
	Short: "Delete a library item and its audio file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		err := a.library.Delete(cmd.Context(), args[0])
		if apperrors.IsFileNotFound(err) && deleteForce {
			err = a.library.DeleteOrphan(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	}),
}

var coverCmd = &cobra.Command{
	Use:   "cover <item-id> <image-url>",
	Short: "Set the cover image of a library item",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		path, err := a.library.SetCoverImage(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cover saved to %s\n", path)
		return nil
	}),
}

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Manage playlists",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		playlists, err := a.library.ListPlaylists()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tITEMS")
		for _, p := range playlists {
			fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, p.Name, p.ItemCount)
		}
		return w.Flush()
	}),
}

var playlistCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty playlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		p, err := a.library.CreatePlaylist(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s  %s\n", p.ID, p.Name)
		return nil
	}),
}

var playlistAddCmd = &cobra.Command{
	Use:   "add <playlist-id> <item-id>...",
	Short: "Append library items to a playlist",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		for _, itemID := range args[1:] {
			if err := a.library.AddToPlaylist(args[0], itemID); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %d items\n", len(args)-1)
		return nil
	}),
}

var playlistDeleteCmd = &cobra.Command{
	Use:   "delete <playlist-id>",
	Short: "Delete a playlist, keeping its items in the library",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.library.DeletePlaylist(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted playlist %s\n", args[0])
		return nil
	}),
}

func init() {
	acquireCmd.Flags().StringVar(&acquireTitle, "title", "", "display title (default: video id)")
	acquireCmd.Flags().StringVar(&acquireCover, "cover", "", "cover image URL")
	importCmd.Flags().StringVar(&importName, "name", "", "playlist name")
	listCmd.Flags().StringVar(&listPlaylist, "playlist", "", "only list items of this playlist")
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "remove the record even when its audio file is already gone")

	playlistCmd.AddCommand(playlistCreateCmd, playlistAddCmd, playlistDeleteCmd)
	rootCmd.AddCommand(acquireCmd, importCmd, listCmd, deleteCmd, coverCmd, playlistCmd)
}

// watchProgress prints registry updates until the returned func is called
func watchProgress(registry *download.Registry, w io.Writer) func() {
	updates, unsubscribe := registry.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		last := time.Time{}
		for {
			select {
			case <-ctx.Done():
				return
			case jobs, ok := <-updates:
				if !ok {
					return
				}
				if time.Since(last) < 250*time.Millisecond {
					continue
				}
				last = time.Now()
				for _, job := range jobs {
					fmt.Fprintln(w, formatJob(job))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-finished
		unsubscribe()
	}
}

func formatJob(job download.Job) string {
	if job.Indeterminate() {
		return fmt.Sprintf("  %s  attempt %d  %d KB", job.DisplayName, job.Attempt, job.BytesReceived/1024)
	}
	return fmt.Sprintf("  %s  attempt %d  %3.0f%%", job.DisplayName, job.Attempt, job.Progress*100)
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
