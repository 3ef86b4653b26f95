//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vibe/vibe-go/internal/playback"
)

// interruptions maps job-control stops to playback interruptions: SIGTSTP
// pauses and SIGCONT resumes.
func interruptions(ctx context.Context) <-chan playback.Interruption {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGTSTP, syscall.SIGCONT)

	out := make(chan playback.Interruption)
	go func() {
		defer signal.Stop(sigs)
		for {
			var i playback.Interruption
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				if sig == syscall.SIGTSTP {
					i = playback.Interruption{Kind: playback.InterruptionBegan}
				} else {
					i = playback.Interruption{Kind: playback.InterruptionEnded, ShouldResume: true}
				}
			}
			select {
			case out <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
