package resolver

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

func TestValidateLink(t *testing.T) {
	tests := []struct {
		link    string
		wantErr bool
	}{
		{"https://youtu.be/abc", false},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://m.youtube.com/watch?v=abc", false},
		{"https://music.youtube.com/watch?v=abc", false},
		{"http://youtube.com/shorts/abc", false},
		{"https://YouTube.com/watch?v=abc", false},
		{"https://vimeo.com/123", true},
		{"https://notyoutube.com/watch?v=abc", true},
		{"https://youtube.com.evil.net/watch?v=abc", true},
		{"ftp://youtube.com/watch?v=abc", true},
		{"youtube.com/watch?v=abc", true},
		{"", true},
		{"::not a url", true},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			err := ValidateLink(tt.link)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLink() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperrors.IsInvalidLink(err) {
				t.Errorf("Expected invalid link error, got %v", err)
			}
		})
	}
}

func TestVideoIDAndPlaylistID(t *testing.T) {
	tests := []struct {
		link     string
		video    string
		playlist string
	}{
		{"https://youtu.be/abc123", "abc123", ""},
		{"https://www.youtube.com/watch?v=xyz&list=PL1", "xyz", "PL1"},
		{"https://www.youtube.com/shorts/short1", "short1", ""},
		{"https://www.youtube.com/playlist?list=PL2", "", "PL2"},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			if got := VideoID(tt.link); got != tt.video {
				t.Errorf("VideoID() = %q, want %q", got, tt.video)
			}
			if got := PlaylistID(tt.link); got != tt.playlist {
				t.Errorf("PlaylistID() = %q, want %q", got, tt.playlist)
			}
		})
	}
}

var testFormats = []Format{
	{Itag: 18, MimeType: "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"", Bitrate: 500000},
	{Itag: 140, MimeType: "audio/mp4; codecs=\"mp4a.40.2\"", Bitrate: 130000},
	{Itag: 251, MimeType: "audio/webm; codecs=\"opus\"", Bitrate: 160000},
	{Itag: 139, MimeType: "audio/mp4; codecs=\"mp4a.40.5\"", Bitrate: 48000},
}

func TestYtDlpResolver_Resolve(t *testing.T) {
	var selectors []string
	r := NewYtDlpResolver(nil, 100, time.Second, nil).WithLookup(
		func(ctx context.Context, link, selector string) (string, []Format, error) {
			selectors = append(selectors, selector)
			if selector == "" {
				return "https://media.example/default", testFormats, nil
			}
			return "https://media.example/audio?" + selector, testFormats, nil
		})

	got, err := r.Resolve(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "https://media.example/audio?itag=251" {
		t.Errorf("Resolve() = %q, want highest-bitrate audio stream", got)
	}
	if len(selectors) != 2 || selectors[1] != "itag=251" {
		t.Errorf("selectors = %v, want [\"\" itag=251]", selectors)
	}
}

func TestBestAudio(t *testing.T) {
	tests := []struct {
		name     string
		formats  []Format
		wantItag int
		wantOK   bool
	}{
		{"highest bitrate audio", testFormats, 251, true},
		{"mime type case", []Format{{Itag: 1, MimeType: "AUDIO/MP4", Bitrate: 1}}, 1, true},
		{"video only", []Format{{Itag: 18, MimeType: "video/mp4", Bitrate: 900000}}, 0, false},
		{"no formats", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bestAudio(tt.formats)
			if ok != tt.wantOK || got.Itag != tt.wantItag {
				t.Errorf("bestAudio() = %d, %v, want %d, %v", got.Itag, ok, tt.wantItag, tt.wantOK)
			}
		})
	}
}

func TestYtDlpResolver_Failures(t *testing.T) {
	tests := []struct {
		name   string
		lookup StreamLookup
	}{
		{"metadata fails", func(ctx context.Context, link, selector string) (string, []Format, error) {
			return "", nil, fmt.Errorf("get player response failed")
		}},
		{"no audio streams", func(ctx context.Context, link, selector string) (string, []Format, error) {
			return "https://media.example/v", []Format{{Itag: 18, MimeType: "video/mp4"}}, nil
		}},
		{"stream resolution fails", func(ctx context.Context, link, selector string) (string, []Format, error) {
			if selector != "" {
				return "", nil, fmt.Errorf("resolve selected format url failed")
			}
			return "", testFormats, nil
		}},
		{"garbage url", func(ctx context.Context, link, selector string) (string, []Format, error) {
			return "not a url", testFormats, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewYtDlpResolver(nil, 100, time.Second, nil).WithLookup(tt.lookup)

			_, err := r.Resolve(context.Background(), "https://youtu.be/abc")
			if !apperrors.IsResolution(err) {
				t.Errorf("Resolve() error = %v, want resolution error", err)
			}
		})
	}
}

func TestYtDlpResolver_InvalidLinkSkipsLookup(t *testing.T) {
	called := false
	r := NewYtDlpResolver(nil, 100, time.Second, nil).WithLookup(
		func(ctx context.Context, link, selector string) (string, []Format, error) {
			called = true
			return "", nil, nil
		})

	_, err := r.Resolve(context.Background(), "https://example.com/x")
	if !apperrors.IsInvalidLink(err) {
		t.Errorf("Resolve() error = %v, want invalid link", err)
	}
	if called {
		t.Error("lookup should not run for invalid links")
	}
}

func TestPlaylistExpander_Expand(t *testing.T) {
	var gotID string
	e := NewPlaylistExpander(time.Second).WithFetcher(func(ctx context.Context, playlistID string) ([]Entry, error) {
		gotID = playlistID
		return []Entry{
			{VideoID: "a", Title: "First"},
			{VideoID: ""},
			{VideoID: "b"},
			{VideoID: "a", Title: "Duplicate"},
		}, nil
	})

	entries, err := e.Expand(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if gotID != "PL123" {
		t.Errorf("playlist id = %q, want PL123", gotID)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Link != "https://www.youtube.com/watch?v=a" {
		t.Errorf("Link = %q", entries[0].Link)
	}
	if entries[1].Title != "b" {
		t.Errorf("Title = %q, want video id fallback", entries[1].Title)
	}
}

func TestPlaylistExpander_Errors(t *testing.T) {
	e := NewPlaylistExpander(time.Second).WithFetcher(func(ctx context.Context, playlistID string) ([]Entry, error) {
		return nil, fmt.Errorf("boom")
	})

	if _, err := e.Expand(context.Background(), "https://youtu.be/abc"); !apperrors.IsInvalidLink(err) {
		t.Errorf("Expand() without list id error = %v, want invalid link", err)
	}
	if _, err := e.Expand(context.Background(), "https://www.youtube.com/playlist?list=PL1"); !apperrors.IsResolution(err) {
		t.Errorf("Expand() fetch failure error = %v, want resolution", err)
	}
}
