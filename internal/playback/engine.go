package playback

import (
	"context"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/store"
)

// subscriberBuffer is the per-subscriber event backlog; events beyond it are dropped
const subscriberBuffer = 64

// Engine owns the current track, the play queue and the loop mode.
// Construct one per renderer and share it; every mutation is serialized.
type Engine struct {
	renderer Renderer
	source   TrackSource
	logger   *zap.Logger
	shuffle  func([]*store.AudioItem)

	mu           sync.Mutex
	allTracks    []*store.AudioItem
	queue        []*store.AudioItem
	scope        store.Scope
	currentIndex int
	current      *store.AudioItem
	state        State
	loopMode     LoopMode

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

// NewEngine creates an idle engine in loop-queue mode
func NewEngine(renderer Renderer, source TrackSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		renderer:     renderer,
		source:       source,
		logger:       logger,
		shuffle:      shuffleTracks,
		currentIndex: -1,
		state:        Idle,
		loopMode:     LoopQueue,
		subscribers:  make(map[int]chan Event),
	}
}

func shuffleTracks(tracks []*store.AudioItem) {
	rand.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}

// SetLibrary replaces the known tracks
func (e *Engine) SetLibrary(tracks []*store.AudioItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allTracks = append([]*store.AudioItem(nil), tracks...)
}

// ReloadLibrary refreshes the known tracks from the track source
func (e *Engine) ReloadLibrary(ctx context.Context) error {
	tracks, err := e.source.Tracks(ctx, store.AllItems)
	if err != nil {
		return err
	}
	e.SetLibrary(tracks)
	return nil
}

// Play starts track. The queue index is taken from the active queue; a track
// outside it switches the queue to the whole library. When the track's file
// cannot be found the engine keeps its previous state; a renderer failure
// leaves it idle.
func (e *Engine) Play(ctx context.Context, track *store.AudioItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	index := indexOf(e.queue, track.ID)
	if index < 0 && indexOf(e.allTracks, track.ID) >= 0 {
		queue := append([]*store.AudioItem(nil), e.allTracks...)
		if e.loopMode == Shuffle {
			e.shuffle(queue)
		}
		if err := e.playLocked(track); err != nil {
			return err
		}
		e.queue = queue
		e.scope = store.AllItems
		e.currentIndex = indexOf(queue, track.ID)
		return nil
	}

	if err := e.playLocked(track); err != nil {
		return err
	}
	e.currentIndex = index
	return nil
}

// playLocked loads and starts track, leaving the queue index to the caller
func (e *Engine) playLocked(track *store.AudioItem) error {
	path, err := e.source.Locate(track)
	if err != nil {
		return err
	}
	// Past this point the renderer may no longer hold the previous file
	if err := e.renderer.Load(path); err != nil {
		e.abandonLocked()
		return err
	}
	if err := e.renderer.Play(); err != nil {
		e.abandonLocked()
		return err
	}

	e.current = track
	e.publish(Event{Kind: EventTrack, Track: track})
	e.setStateLocked(Playing)
	monitoring.RecordPlaybackEvent("play")

	e.logger.Debug("track started",
		zap.String("item_id", track.ID),
		zap.String("title", track.Title))
	return nil
}

// abandonLocked drops the current track after a renderer failure
func (e *Engine) abandonLocked() {
	if err := e.renderer.Stop(); err != nil {
		e.logger.Warn("failed to stop renderer", zap.Error(err))
	}
	e.currentIndex = -1
	if e.current != nil {
		e.current = nil
		e.publish(Event{Kind: EventTrack})
	}
	e.setStateLocked(Idle)
}

func (e *Engine) playIndexLocked(index int) error {
	track := e.queue[index]
	if err := e.playLocked(track); err != nil {
		return err
	}
	e.currentIndex = index
	return nil
}

// Pause pauses playback; it does nothing unless playing
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauseLocked()
}

func (e *Engine) pauseLocked() error {
	if e.state != Playing {
		return nil
	}
	if err := e.renderer.Pause(); err != nil {
		return err
	}
	e.setStateLocked(Paused)
	monitoring.RecordPlaybackEvent("pause")
	return nil
}

// Resume resumes playback; it does nothing unless paused
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumeLocked()
}

func (e *Engine) resumeLocked() error {
	if e.state != Paused {
		return nil
	}
	if err := e.renderer.Resume(); err != nil {
		return err
	}
	e.setStateLocked(Playing)
	monitoring.RecordPlaybackEvent("resume")
	return nil
}

// Stop stops playback and clears the current track. No time events are
// published after Stop returns.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.renderer.Stop(); err != nil {
		return err
	}
	e.currentIndex = -1
	if e.current != nil {
		e.current = nil
		e.publish(Event{Kind: EventTrack})
	}
	e.setStateLocked(Idle)
	monitoring.RecordPlaybackEvent("stop")
	return nil
}

// Seek moves the playback position without changing the play state
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Idle {
		return nil
	}
	if seconds < 0 {
		seconds = 0
	}
	if err := e.renderer.Seek(seconds); err != nil {
		return err
	}
	monitoring.RecordPlaybackEvent("seek")
	return nil
}

// PlayNext plays the following queue entry, wrapping to the first
func (e *Engine) PlayNext(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextLocked()
}

func (e *Engine) nextLocked() error {
	n := len(e.queue)
	if n == 0 {
		return nil
	}
	next := 0
	if e.currentIndex >= 0 {
		next = (e.currentIndex + 1) % n
	}
	return e.playIndexLocked(next)
}

// PlayPrevious plays the preceding queue entry, wrapping to the last
func (e *Engine) PlayPrevious(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.queue)
	if n == 0 {
		return nil
	}
	prev := n - 1
	if e.currentIndex > 0 {
		prev = e.currentIndex - 1
	}
	return e.playIndexLocked(prev)
}

// OnTrackFinished reacts to the renderer reaching the end of the current file.
// When nothing can be started the engine goes idle.
func (e *Engine) OnTrackFinished(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Idle {
		return nil
	}
	monitoring.RecordPlaybackEvent("finished")

	var err error
	switch {
	case e.loopMode == LoopOne && e.current != nil:
		err = e.playLocked(e.current)
	case len(e.queue) > 0:
		err = e.nextLocked()
	default:
		e.current = nil
		e.currentIndex = -1
		e.publish(Event{Kind: EventTrack})
		e.setStateLocked(Idle)
		return nil
	}

	if err != nil {
		e.setStateLocked(Idle)
	}
	return err
}

// ChangeLoopOption switches the loop mode. Loop-queue restores the scope's
// original order and shuffle permutes the queue; both keep the current track
// current.
func (e *Engine) ChangeLoopOption(ctx context.Context, mode LoopMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch mode {
	case LoopQueue:
		tracks, err := e.source.Tracks(ctx, e.scope)
		if err != nil {
			return err
		}
		e.queue = tracks
		e.relocateLocked()
	case Shuffle:
		queue := append([]*store.AudioItem(nil), e.queue...)
		e.shuffle(queue)
		e.queue = queue
		e.relocateLocked()
	}

	e.loopMode = mode
	e.publish(Event{Kind: EventLoopMode, LoopMode: mode})
	return nil
}

// UpdateCurrentPlaylistSongs replaces the queue with the tracks of scope.
// The current track stays current when the new scope contains it; otherwise
// it keeps playing outside the queue and the next PlayNext starts at the top.
func (e *Engine) UpdateCurrentPlaylistSongs(ctx context.Context, scope store.Scope) error {
	tracks, err := e.source.Tracks(ctx, scope)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loopMode == Shuffle {
		e.shuffle(tracks)
	}
	e.queue = tracks
	e.scope = scope
	e.relocateLocked()
	return nil
}

func (e *Engine) relocateLocked() {
	if e.current == nil {
		e.currentIndex = -1
		return
	}
	e.currentIndex = indexOf(e.queue, e.current.ID)
}

// HandleInterruption pauses on takeover or route loss and resumes when a
// takeover ends with a resume hint.
func (e *Engine) HandleInterruption(i Interruption) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	monitoring.RecordPlaybackEvent("interruption")

	switch i.Kind {
	case InterruptionBegan, RouteUnavailable:
		return e.pauseLocked()
	case InterruptionEnded:
		if i.ShouldResume {
			return e.resumeLocked()
		}
	}
	return nil
}

// Run forwards renderer time ticks, finished signals and interruptions to the
// engine until ctx is done.
func (e *Engine) Run(ctx context.Context, interruptions <-chan Interruption) {
	times := e.renderer.Times()
	finished := e.renderer.Finished()

	for {
		select {
		case <-ctx.Done():
			return

		case t, ok := <-times:
			if !ok {
				times = nil
				continue
			}
			e.mu.Lock()
			if e.state != Idle {
				e.publish(Event{Kind: EventTime, Time: t})
			}
			e.mu.Unlock()

		case _, ok := <-finished:
			if !ok {
				finished = nil
				continue
			}
			if err := e.OnTrackFinished(ctx); err != nil {
				e.logger.Warn("failed to continue after finished track", zap.Error(err))
			}

		case i, ok := <-interruptions:
			if !ok {
				interruptions = nil
				continue
			}
			if err := e.HandleInterruption(i); err != nil {
				e.logger.Warn("failed to handle interruption", zap.Error(err))
			}
		}
	}
}

// Subscribe returns a channel of engine events and a function that ends the
// subscription. The current track, play state and loop mode are sent first.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	ch <- Event{Kind: EventTrack, Track: e.current}
	ch <- Event{Kind: EventPlaying, Playing: e.state == Playing}
	ch <- Event{Kind: EventLoopMode, LoopMode: e.loopMode}

	e.subMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subscribers, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) setStateLocked(s State) {
	wasPlaying := e.state == Playing
	e.state = s
	if wasPlaying != (s == Playing) {
		e.publish(Event{Kind: EventPlaying, Playing: s == Playing})
	}
}

// publish must be called with e.mu held so events keep mutation order
func (e *Engine) publish(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// State returns the play state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentTrack returns the track loaded in the renderer, or nil
func (e *Engine) CurrentTrack() *store.AudioItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// CurrentIndex returns the queue index of the current track, or -1
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// Queue returns a copy of the play queue
func (e *Engine) Queue() []*store.AudioItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*store.AudioItem(nil), e.queue...)
}

// LoopMode returns the loop mode
func (e *Engine) LoopMode() LoopMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loopMode
}

func indexOf(tracks []*store.AudioItem, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
