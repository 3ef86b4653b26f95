package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/playback"
	"github.com/vibe/vibe-go/internal/playback/mpv"
	"github.com/vibe/vibe-go/internal/store"
)

var (
	playPlaylist string
	playLoop     string
)

const playHelp = `commands: [enter] pause/resume  n next  b previous  seek <sec>  loop <loop-queue|loop-one|shuffle>  s stop  q quit`

var playCmd = &cobra.Command{
	Use:   "play [item-id]",
	Short: "Play the library or a playlist through mpv",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mode := a.cfg.Playback.DefaultLoopMode
		if playLoop != "" {
			mode = playLoop
		}
		loopMode, err := playback.ParseLoopMode(mode)
		if err != nil {
			return err
		}

		renderer, err := mpv.New(ctx, time.Duration(a.cfg.Playback.TickIntervalMS)*time.Millisecond,
			monitoring.WithComponent(a.logger, "renderer"))
		if err != nil {
			return err
		}
		defer renderer.Close()

		engine := playback.NewEngine(renderer, a.library, monitoring.WithComponent(a.logger, "engine"))
		if err := engine.ReloadLibrary(ctx); err != nil {
			return err
		}

		scope := store.AllItems
		if playPlaylist != "" {
			scope = store.Scope{PlaylistID: playPlaylist}
		}
		if err := engine.UpdateCurrentPlaylistSongs(ctx, scope); err != nil {
			return err
		}
		if len(engine.Queue()) == 0 {
			return fmt.Errorf("nothing to play in %s", scope)
		}
		if loopMode != playback.LoopQueue {
			if err := engine.ChangeLoopOption(ctx, loopMode); err != nil {
				return err
			}
		}

		go engine.Run(ctx, interruptions(ctx))

		// Pick up tracks acquired by other vibe processes while playing
		go func() {
			err := a.library.Watch(ctx, func() {
				if err := engine.ReloadLibrary(ctx); err != nil {
					a.logger.Warn("failed to reload library", zap.Error(err))
					return
				}
				if err := engine.UpdateCurrentPlaylistSongs(ctx, scope); err != nil {
					a.logger.Warn("failed to refresh queue", zap.Error(err))
				}
			})
			if err != nil {
				a.logger.Warn("library watcher stopped", zap.Error(err))
			}
		}()

		events, unsubscribe := engine.Subscribe()
		defer unsubscribe()
		go printEvents(ctx, events, cmd.OutOrStdout())

		if len(args) == 1 {
			item, err := a.library.Get(args[0])
			if err != nil {
				return err
			}
			if err := engine.Play(ctx, item); err != nil {
				return err
			}
		} else if err := engine.PlayNext(ctx); err != nil {
			return err
		}

		fmt.Fprintln(cmd.ErrOrStderr(), playHelp)
		err = readCommands(ctx, cmd.InOrStdin(), engine)
		if stopErr := engine.Stop(); stopErr != nil {
			a.logger.Warn("failed to stop playback", zap.Error(stopErr))
		}
		return err
	}),
}

func init() {
	playCmd.Flags().StringVar(&playPlaylist, "playlist", "", "play this playlist instead of the whole library")
	playCmd.Flags().StringVar(&playLoop, "loop", "", "loop mode: loop-queue, loop-one or shuffle")
	rootCmd.AddCommand(playCmd)
}

// readCommands drives engine from line commands until quit, EOF or ctx ends
func readCommands(ctx context.Context, in io.Reader, engine *playback.Engine) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		fields := strings.Fields(line)
		var err error
		switch {
		case len(fields) == 0 || fields[0] == "p":
			if engine.State() == playback.Playing {
				err = engine.Pause()
			} else {
				err = engine.Resume()
			}
		case fields[0] == "n":
			err = engine.PlayNext(ctx)
		case fields[0] == "b":
			err = engine.PlayPrevious(ctx)
		case fields[0] == "s":
			err = engine.Stop()
		case fields[0] == "q":
			return nil
		case fields[0] == "seek" && len(fields) == 2:
			var seconds float64
			seconds, err = strconv.ParseFloat(fields[1], 64)
			if err == nil {
				err = engine.Seek(seconds)
			}
		case fields[0] == "loop" && len(fields) == 2:
			var mode playback.LoopMode
			mode, err = playback.ParseLoopMode(fields[1])
			if err == nil {
				err = engine.ChangeLoopOption(ctx, mode)
			}
		default:
			fmt.Fprintln(os.Stderr, playHelp)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func printEvents(ctx context.Context, events <-chan playback.Event, w io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case playback.EventTrack:
				if ev.Track != nil {
					fmt.Fprintf(w, "\nnow playing: %s [%s]\n", ev.Track.Title, formatSeconds(ev.Track.DurationSeconds))
				}
			case playback.EventPlaying:
				if !ev.Playing {
					fmt.Fprint(w, "\n(paused)\n")
				}
			case playback.EventLoopMode:
				fmt.Fprintf(w, "\nloop mode: %s\n", ev.LoopMode)
			case playback.EventTime:
				fmt.Fprintf(w, "\r%s ", formatSeconds(ev.Time+0.001))
			}
		}
	}
}
