//go:build windows

package main

import (
	"context"

	"github.com/vibe/vibe-go/internal/playback"
)

// interruptions has no job-control signals to listen to on Windows
func interruptions(ctx context.Context) <-chan playback.Interruption {
	return nil
}
