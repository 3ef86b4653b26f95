// Package mpv renders audio files with libmpv.
package mpv

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wildeyedskies/go-mpv/mpv"
	"go.uber.org/zap"

	"github.com/vibe/vibe-go/internal/playback"
)

var _ playback.Renderer = (*Renderer)(nil)

// Renderer plays local files through an embedded mpv instance
type Renderer struct {
	m      *mpv.Mpv
	logger *zap.Logger

	times    chan float64
	finished chan struct{}

	mu     sync.Mutex
	loaded bool
	paused bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an audio-only mpv instance and starts its event loop
func New(ctx context.Context, tickInterval time.Duration, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tickInterval <= 0 {
		tickInterval = 500 * time.Millisecond
	}

	m := mpv.Create()
	m.SetOptionString("audio-display", "no")
	m.SetOptionString("video", "no")

	if err := m.Initialize(); err != nil {
		m.TerminateDestroy()
		return nil, fmt.Errorf("failed to initialize mpv: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Renderer{
		m:        m,
		logger:   logger,
		times:    make(chan float64, 1),
		finished: make(chan struct{}, 1),
		cancel:   cancel,
	}

	r.wg.Add(2)
	go r.eventLoop(ctx)
	go r.tickLoop(ctx, tickInterval)

	return r, nil
}

// Load opens path paused; Play starts it
func (r *Renderer) Load(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.m.Command([]string{"set", "pause", "yes"}); err != nil {
		return fmt.Errorf("failed to pause before load: %w", err)
	}
	if err := r.m.Command([]string{"loadfile", path, "replace"}); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	// An end signal still pending belongs to the replaced file
	select {
	case <-r.finished:
	default:
	}
	r.loaded = true
	r.paused = true
	return nil
}

// Play starts the loaded file
func (r *Renderer) Play() error {
	return r.setPause(false)
}

// Pause pauses playback
func (r *Renderer) Pause() error {
	return r.setPause(true)
}

// Resume continues paused playback
func (r *Renderer) Resume() error {
	return r.setPause(false)
}

func (r *Renderer) setPause(pause bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return fmt.Errorf("no file loaded")
	}
	value := "no"
	if pause {
		value = "yes"
	}
	if err := r.m.Command([]string{"set", "pause", value}); err != nil {
		return fmt.Errorf("failed to set pause=%s: %w", value, err)
	}
	r.paused = pause
	return nil
}

// Seek jumps to an absolute position in seconds
func (r *Renderer) Seek(seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return fmt.Errorf("no file loaded")
	}
	pos := strconv.FormatFloat(seconds, 'f', 3, 64)
	if err := r.m.Command([]string{"seek", pos, "absolute"}); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// Stop unloads the current file
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return nil
	}
	if err := r.m.Command([]string{"stop"}); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	r.loaded = false
	r.paused = false
	return nil
}

// Times reports the playback position while a file is playing
func (r *Renderer) Times() <-chan float64 {
	return r.times
}

// Finished fires when a file plays to its end
func (r *Renderer) Finished() <-chan struct{} {
	return r.finished
}

// Close stops the event loops and destroys the mpv instance
func (r *Renderer) Close() error {
	r.cancel()
	r.wg.Wait()
	r.m.TerminateDestroy()
	return nil
}

func (r *Renderer) eventLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e := r.m.WaitEvent(1)
		if e == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if !playedToEnd(e) {
			continue
		}

		r.mu.Lock()
		r.loaded = false
		r.mu.Unlock()

		r.logger.Debug("mpv finished file")
		select {
		case r.finished <- struct{}{}:
		default:
		}
	}
}

// playedToEnd reports end-file events of files that ran out on their own.
// Files replaced by loadfile or unloaded by stop end with other reasons.
// A file mpv cannot decode counts as ended so the queue moves on.
func playedToEnd(e *mpv.Event) bool {
	if e == nil || e.Event_Id != mpv.EVENT_END_FILE {
		return false
	}
	end, ok := e.Data.(mpv.EventEndFile)
	if !ok {
		return false
	}
	return end.Reason == mpv.END_FILE_REASON_EOF || end.Reason == mpv.END_FILE_REASON_ERROR
}

func (r *Renderer) tickLoop(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			active := r.loaded && !r.paused
			r.mu.Unlock()
			if !active {
				continue
			}

			pos, err := r.m.GetProperty("time-pos", mpv.FORMAT_DOUBLE)
			if err != nil {
				continue
			}
			seconds, ok := pos.(float64)
			if !ok {
				continue
			}

			// Latest position wins
			select {
			case r.times <- seconds:
			default:
				select {
				case <-r.times:
				default:
				}
				select {
				case r.times <- seconds:
				default:
				}
			}
		}
	}
}
