package playback

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibe/vibe-go/internal/store"
)

// LoopMode governs what happens when a track finishes
type LoopMode int

const (
	// LoopQueue advances through the queue in order, wrapping at the end
	LoopQueue LoopMode = iota
	// LoopOne replays the current track
	LoopOne
	// Shuffle advances through a permuted queue
	Shuffle
)

func (m LoopMode) String() string {
	switch m {
	case LoopQueue:
		return "loop-queue"
	case LoopOne:
		return "loop-one"
	case Shuffle:
		return "shuffle"
	default:
		return fmt.Sprintf("LoopMode(%d)", int(m))
	}
}

// ParseLoopMode parses the String form of a loop mode
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loop-queue", "queue", "":
		return LoopQueue, nil
	case "loop-one", "one":
		return LoopOne, nil
	case "shuffle":
		return Shuffle, nil
	}
	return LoopQueue, fmt.Errorf("unknown loop mode %q", s)
}

// State is the engine's play state
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Renderer plays one audio file at a time
type Renderer interface {
	Load(path string) error
	Play() error
	Pause() error
	Resume() error
	Seek(seconds float64) error
	Stop() error
	// Times reports the playback position in seconds while a file plays
	Times() <-chan float64
	// Finished fires once when a loaded file plays to its end
	Finished() <-chan struct{}
	Close() error
}

// TrackSource provides the tracks of a queue scope and their files
type TrackSource interface {
	Tracks(ctx context.Context, scope store.Scope) ([]*store.AudioItem, error)
	Locate(item *store.AudioItem) (string, error)
}

// InterruptionKind classifies external audio interruptions
type InterruptionKind int

const (
	// InterruptionBegan means another party took over audio output
	InterruptionBegan InterruptionKind = iota
	// InterruptionEnded means the takeover is over
	InterruptionEnded
	// RouteUnavailable means the output device went away
	RouteUnavailable
)

// Interruption is one external interruption signal
type Interruption struct {
	Kind InterruptionKind
	// ShouldResume is the resume hint of InterruptionEnded
	ShouldResume bool
}

// EventKind identifies which observable value an Event carries
type EventKind int

const (
	EventTime EventKind = iota
	EventPlaying
	EventTrack
	EventLoopMode
)

// Event is one change of an observable engine value
type Event struct {
	Kind     EventKind
	Time     float64
	Playing  bool
	Track    *store.AudioItem
	LoopMode LoopMode
}
