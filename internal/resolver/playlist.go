package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/ytget/ytdlp/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

// Entry is one video of an expanded playlist
type Entry struct {
	VideoID string
	Title   string
	Link    string
}

// PlaylistFetcher lists the videos of a playlist id
type PlaylistFetcher func(ctx context.Context, playlistID string) ([]Entry, error)

// ytdlpFetcher lists playlist items through the ytdlp library
func ytdlpFetcher(ctx context.Context, playlistID string) ([]Entry, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, Entry{VideoID: it.VideoID, Title: it.Title})
	}
	return entries, nil
}

// PlaylistExpander turns a playlist link into watch links
type PlaylistExpander struct {
	fetch       PlaylistFetcher
	timeout     time.Duration
	rateLimiter *rate.Limiter
}

// NewPlaylistExpander creates an expander backed by the ytdlp library
func NewPlaylistExpander(timeout time.Duration) *PlaylistExpander {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &PlaylistExpander{
		fetch:       ytdlpFetcher,
		timeout:     timeout,
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// WithFetcher replaces the playlist fetcher
func (e *PlaylistExpander) WithFetcher(fetch PlaylistFetcher) *PlaylistExpander {
	e.fetch = fetch
	return e
}

// Expand returns the entries of the playlist behind link, skipping entries
// without a video id and duplicates.
func (e *PlaylistExpander) Expand(ctx context.Context, link string) ([]Entry, error) {
	if err := ValidateLink(link); err != nil {
		return nil, err
	}

	playlistID := PlaylistID(link)
	if playlistID == "" {
		return nil, apperrors.NewInvalidLinkError(link, fmt.Errorf("no playlist id"))
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.NewResolutionError("rate limiter error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	items, err := e.fetch(ctx, playlistID)
	if err != nil {
		return nil, apperrors.NewResolutionError(fmt.Sprintf("failed to list playlist %s", playlistID), err)
	}

	seen := make(map[string]bool, len(items))
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item.VideoID == "" || seen[item.VideoID] {
			continue
		}
		seen[item.VideoID] = true
		item.Link = WatchURL(item.VideoID)
		if item.Title == "" {
			item.Title = item.VideoID
		}
		entries = append(entries, item)
	}

	if len(entries) == 0 {
		return nil, apperrors.NewResolutionError(fmt.Sprintf("playlist %s has no videos", playlistID), nil)
	}

	return entries, nil
}
