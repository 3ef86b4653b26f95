package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vibe/vibe-go/internal/download"
)

// watchDebounce groups bursts of file events into one change notification
const watchDebounce = 500 * time.Millisecond

// Watch calls onChange whenever audio files appear in or disappear from the
// documents directory, for example when another process finishes an
// acquisition. It blocks until ctx is done.
func (s *Service) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.config.DocumentsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.config.DocumentsDir, err)
	}

	var mu sync.Mutex
	var timer *time.Timer
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isAudioEvent(event) {
				continue
			}
			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, onChange)
			} else {
				timer.Reset(watchDebounce)
			}
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("library watcher error", zap.Error(err))
		}
	}
}

// isAudioEvent skips hidden staging files and anything that is not audio
func isAudioEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	return !strings.HasPrefix(name, ".") && filepath.Ext(name) == download.AudioExt
}
