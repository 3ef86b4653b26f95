package library

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vibe/vibe-go/internal/download"
	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/resolver"
	"github.com/vibe/vibe-go/internal/security"
	"github.com/vibe/vibe-go/internal/store"
)

// Acquirer persists the audio of a source link
type Acquirer interface {
	Acquire(ctx context.Context, sourceLink, displayName string) (*download.Acquisition, error)
}

// DurationProber measures audio files
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// CoverSaver stores cover thumbnails
type CoverSaver interface {
	Save(ctx context.Context, id, imageURL string) (string, error)
	Remove(id string) error
}

// PlaylistExpander lists the videos of a playlist link
type PlaylistExpander interface {
	Expand(ctx context.Context, link string) ([]resolver.Entry, error)
}

// Config holds library settings
type Config struct {
	DocumentsDir        string
	ConcurrentDownloads int
}

// Service ties acquisition, files on disk and library records together
type Service struct {
	store    *store.LibraryStore
	acquirer Acquirer
	config   Config
	prober   DurationProber
	covers   CoverSaver
	expander PlaylistExpander
	logger   *zap.Logger
}

// NewService creates a library service
func NewService(st *store.LibraryStore, acquirer Acquirer, config Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ConcurrentDownloads <= 0 {
		config.ConcurrentDownloads = 3
	}
	return &Service{
		store:    st,
		acquirer: acquirer,
		config:   config,
		logger:   logger,
	}
}

// WithProber sets the duration prober used after downloads
func (s *Service) WithProber(p DurationProber) *Service {
	s.prober = p
	return s
}

// WithCovers sets the cover thumbnail store
func (s *Service) WithCovers(c CoverSaver) *Service {
	s.covers = c
	return s
}

// WithExpander sets the playlist expander used by ImportPlaylist
func (s *Service) WithExpander(e PlaylistExpander) *Service {
	s.expander = e
	return s
}

// Download acquires link and records it in the library. An empty title falls
// back to the video id of the link.
func (s *Service) Download(ctx context.Context, link, title, coverURL string) (*store.AudioItem, error) {
	title = security.SanitizeTitle(title)
	if title == "" {
		title = resolver.VideoID(link)
	}
	if title == "" {
		title = link
	}

	acq, err := s.acquirer.Acquire(ctx, link, title)
	if err != nil {
		return nil, err
	}

	item := &store.AudioItem{
		ID:            acq.ItemID,
		Title:         title,
		SourceLink:    link,
		CoverImageRef: coverURL,
	}

	if s.prober != nil {
		seconds, err := s.prober.Duration(ctx, acq.Path)
		if err != nil {
			s.logger.Warn("duration probe failed",
				zap.String("item_id", item.ID),
				zap.Error(err))
		} else {
			item.DurationSeconds = seconds
		}
	}

	if err := s.store.Save(item); err != nil {
		os.Remove(acq.Path)
		monitoring.RecordError(string(apperrors.ErrTypePersistence))
		return nil, apperrors.NewPersistenceError("failed to record audio item", err)
	}

	s.logger.Info("audio item added",
		zap.String("item_id", item.ID),
		zap.String("title", item.Title))

	return item, nil
}

// Delete removes the audio file of item id, then its record. When the file
// cannot be found the record is left intact and a file not found error is returned.
func (s *Service) Delete(ctx context.Context, id string) error {
	item, err := s.store.GetByID(id)
	if err != nil {
		return err
	}

	if err := download.RemoveAudio(s.config.DocumentsDir, item.ID, item.Title); err != nil {
		monitoring.RecordError(string(apperrors.GetErrorType(err)))
		return err
	}

	if err := s.store.Delete(item.ID); err != nil {
		return err
	}

	if s.covers != nil {
		if err := s.covers.Remove(item.ID); err != nil {
			s.logger.Warn("failed to remove cover thumbnail", zap.String("item_id", item.ID), zap.Error(err))
		}
	}

	s.logger.Info("audio item deleted", zap.String("item_id", item.ID))
	return nil
}

// DeleteOrphan removes the record of an item whose audio file is already
// gone. Items that still have a file must go through Delete.
func (s *Service) DeleteOrphan(ctx context.Context, id string) error {
	item, err := s.store.GetByID(id)
	if err != nil {
		return err
	}

	if path, err := download.Locate(s.config.DocumentsDir, item.ID, item.Title); err == nil {
		return apperrors.NewValidationError(fmt.Sprintf("item %s still has audio at %s", item.ID, path))
	} else if !apperrors.IsFileNotFound(err) {
		return err
	}

	if err := s.store.Delete(item.ID); err != nil {
		return err
	}
	if s.covers != nil {
		if err := s.covers.Remove(item.ID); err != nil {
			s.logger.Warn("failed to remove cover thumbnail", zap.String("item_id", item.ID), zap.Error(err))
		}
	}

	s.logger.Info("orphaned record deleted", zap.String("item_id", item.ID))
	return nil
}

// Get returns one item
func (s *Service) Get(id string) (*store.AudioItem, error) {
	return s.store.GetByID(id)
}

// List returns the items of scope
func (s *Service) List(scope store.Scope) ([]*store.AudioItem, error) {
	return s.store.FetchAll(scope)
}

// Tracks returns the items of scope for the playback engine
func (s *Service) Tracks(ctx context.Context, scope store.Scope) ([]*store.AudioItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.FetchAll(scope)
}

// Locate returns the audio file of item
func (s *Service) Locate(item *store.AudioItem) (string, error) {
	return download.Locate(s.config.DocumentsDir, item.ID, item.Title)
}

// CreatePlaylist creates an empty playlist
func (s *Service) CreatePlaylist(name string) (*store.Playlist, error) {
	return s.store.CreatePlaylist(name)
}

// ListPlaylists returns all playlists
func (s *Service) ListPlaylists() ([]*store.Playlist, error) {
	return s.store.ListPlaylists()
}

// AddToPlaylist appends an item to a playlist
func (s *Service) AddToPlaylist(playlistID, itemID string) error {
	return s.store.AddToPlaylist(playlistID, itemID)
}

// DeletePlaylist removes a playlist; its items stay in the library
func (s *Service) DeletePlaylist(id string) error {
	return s.store.DeletePlaylist(id)
}

// SetCoverImage downloads imageURL as the local cover of item id
func (s *Service) SetCoverImage(ctx context.Context, id, imageURL string) (string, error) {
	if s.covers == nil {
		return "", fmt.Errorf("cover store not configured")
	}
	if _, err := s.store.GetByID(id); err != nil {
		return "", err
	}

	path, err := s.covers.Save(ctx, id, imageURL)
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateCoverImage(id, path); err != nil {
		return "", err
	}
	return path, nil
}

// ImportFailure is one playlist entry that could not be acquired
type ImportFailure struct {
	Link  string
	Title string
	Err   error
}

// ImportResult summarizes a playlist import
type ImportResult struct {
	Playlist *store.Playlist
	Items    []*store.AudioItem
	Failures []ImportFailure
}

// ImportPlaylist expands a playlist link, acquires every entry on a bounded
// worker pool and collects the successful ones, in playlist order, into a new
// playlist named name.
func (s *Service) ImportPlaylist(ctx context.Context, link, name string) (*ImportResult, error) {
	if s.expander == nil {
		return nil, fmt.Errorf("playlist expander not configured")
	}

	entries, err := s.expander.Expand(ctx, link)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = "Imported " + resolver.PlaylistID(link)
	}
	playlist, err := s.store.CreatePlaylist(name)
	if err != nil {
		return nil, err
	}

	items := make(map[string]*store.AudioItem, len(entries))
	pool := download.NewWorkerPool(s.config.ConcurrentDownloads, func(ctx context.Context, task *download.Task) (*download.Acquisition, error) {
		item, err := s.Download(ctx, task.Link, task.DisplayName, "")
		if err != nil {
			return nil, err
		}
		return &download.Acquisition{ItemID: item.ID}, nil
	}, s.logger)

	if err := pool.Start(ctx); err != nil {
		return nil, err
	}

	rejected := make(chan *download.Result, len(entries))
	submitted := make(chan struct{})
	// The pool closes its task queue on Stop, so submission must finish first
	defer func() {
		<-submitted
		pool.Stop()
	}()
	go func() {
		defer close(submitted)
		for i, entry := range entries {
			task := &download.Task{ID: strconv.Itoa(i), Link: entry.Link, DisplayName: entry.Title}
			if err := pool.Submit(task); err != nil {
				rejected <- &download.Result{TaskID: task.ID, Error: err}
			}
		}
	}()

	result := &ImportResult{Playlist: playlist}
	failures := make(map[int]error)

	for received := 0; received < len(entries); received++ {
		var r *download.Result
		select {
		case r = <-pool.Results():
		case r = <-rejected:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		idx, _ := strconv.Atoi(r.TaskID)
		if !r.Success() {
			failures[idx] = r.Error
			continue
		}
		item, err := s.store.GetByID(r.Acquisition.ItemID)
		if err != nil {
			failures[idx] = err
			continue
		}
		items[r.TaskID] = item
	}

	for i, entry := range entries {
		if err, failed := failures[i]; failed {
			s.logger.Warn("playlist entry failed",
				zap.String("link", entry.Link),
				zap.Error(err))
			result.Failures = append(result.Failures, ImportFailure{Link: entry.Link, Title: entry.Title, Err: err})
			continue
		}
		item := items[strconv.Itoa(i)]
		if err := s.store.AddToPlaylist(playlist.ID, item.ID); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("playlist imported",
		zap.String("playlist_id", playlist.ID),
		zap.Int("imported", len(result.Items)),
		zap.Int("failed", len(result.Failures)))

	return result, nil
}
