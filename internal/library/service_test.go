package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/vibe/vibe-go/internal/download"
	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/resolver"
	"github.com/vibe/vibe-go/internal/store"
)

// fakeAcquirer writes a small file for every link not listed in fail
type fakeAcquirer struct {
	docs string
	fail map[string]error

	mu    sync.Mutex
	calls int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, link, name string) (*download.Acquisition, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err, ok := f.fail[link]; ok {
		return nil, err
	}

	id := uuid.NewString()
	path := download.AudioPath(f.docs, id)
	if err := os.WriteFile(path, []byte("audio:"+link), 0644); err != nil {
		return nil, err
	}
	return &download.Acquisition{ItemID: id, JobID: "job-" + id, Path: path, Bytes: 6}, nil
}

type fakeProber struct {
	seconds float64
	err     error
}

func (p *fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	return p.seconds, p.err
}

type fakeCovers struct {
	dir     string
	removed []string
}

func (c *fakeCovers) Save(ctx context.Context, id, imageURL string) (string, error) {
	if imageURL == "bad" {
		return "", apperrors.NewValidationError("bad image")
	}
	return filepath.Join(c.dir, id+".jpg"), nil
}

func (c *fakeCovers) Remove(id string) error {
	c.removed = append(c.removed, id)
	return nil
}

type fakeExpander struct {
	entries []resolver.Entry
	err     error
}

func (e *fakeExpander) Expand(ctx context.Context, link string) ([]resolver.Entry, error) {
	return e.entries, e.err
}

func newTestService(t *testing.T) (*Service, *fakeAcquirer, string) {
	t.Helper()
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}

	db, err := store.InitDB(filepath.Join(dir, "library.db"))
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	acq := &fakeAcquirer{docs: docs, fail: map[string]error{}}
	svc := NewService(store.NewLibraryStore(db), acq, Config{DocumentsDir: docs, ConcurrentDownloads: 2}, nil)
	return svc, acq, docs
}

func TestDownloadRecordsItem(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.WithProber(&fakeProber{seconds: 42.5})

	item, err := svc.Download(context.Background(), "https://youtu.be/abc", "Song", "https://img/c.jpg")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	got, err := svc.Get(item.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Song" || got.DurationSeconds != 42.5 || got.CoverImageRef != "https://img/c.jpg" {
		t.Errorf("Get() = %+v", got)
	}

	path, err := svc.Locate(got)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if filepath.Base(path) != item.ID+".m4a" {
		t.Errorf("Locate() = %s, want id-named file", path)
	}
}

func TestDownloadTitleFallbackAndDurationFailure(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.WithProber(&fakeProber{err: fmt.Errorf("ffprobe missing")})

	item, err := svc.Download(context.Background(), "https://www.youtube.com/watch?v=vid42", " ", "")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if item.Title != "vid42" {
		t.Errorf("Title = %q, want video id", item.Title)
	}
	if item.DurationSeconds != 0 {
		t.Errorf("DurationSeconds = %v, want 0 when duration is unknown", item.DurationSeconds)
	}
}

func TestDownloadFailureLeavesNoRecord(t *testing.T) {
	svc, acq, _ := newTestService(t)
	link := "https://youtu.be/broken"
	acq.fail[link] = apperrors.NewExhaustedRetriesError(3, fmt.Errorf("timeout"))

	if _, err := svc.Download(context.Background(), link, "Broken", ""); !apperrors.IsExhaustedRetries(err) {
		t.Errorf("Download() error = %v, want exhausted retries", err)
	}

	items, _ := svc.List(store.AllItems)
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	covers := &fakeCovers{dir: t.TempDir()}
	svc.WithCovers(covers)

	item, err := svc.Download(context.Background(), "https://youtu.be/abc", "Song", "")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	path, _ := svc.Locate(item)

	if err := svc.Delete(context.Background(), item.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("audio file still present: %v", err)
	}
	if _, err := svc.Get(item.ID); !apperrors.IsNotFound(err) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
	if len(covers.removed) != 1 || covers.removed[0] != item.ID {
		t.Errorf("covers removed = %v", covers.removed)
	}
	if _, err := svc.Locate(item); !apperrors.IsFileNotFound(err) {
		t.Errorf("Locate() after delete error = %v, want file not found", err)
	}
}

func TestDeleteMissingFileKeepsRecord(t *testing.T) {
	svc, _, _ := newTestService(t)

	item, _ := svc.Download(context.Background(), "https://youtu.be/abc", "Song", "")
	path, _ := svc.Locate(item)
	os.Remove(path)

	if err := svc.Delete(context.Background(), item.ID); !apperrors.IsFileNotFound(err) {
		t.Fatalf("Delete() error = %v, want file not found", err)
	}
	if _, err := svc.Get(item.ID); err != nil {
		t.Errorf("record should survive a failed delete: %v", err)
	}
}

func TestDeleteOrphan(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	kept, _ := svc.Download(ctx, "https://youtu.be/abc", "Kept", "")
	if err := svc.DeleteOrphan(ctx, kept.ID); !apperrors.IsValidation(err) {
		t.Errorf("DeleteOrphan() with file present error = %v, want validation", err)
	}
	if _, err := svc.Get(kept.ID); err != nil {
		t.Errorf("record with audio was removed: %v", err)
	}

	orphan, _ := svc.Download(ctx, "https://youtu.be/def", "Orphan", "")
	path, _ := svc.Locate(orphan)
	os.Remove(path)

	if err := svc.DeleteOrphan(ctx, orphan.ID); err != nil {
		t.Fatalf("DeleteOrphan() error = %v", err)
	}
	if _, err := svc.Get(orphan.ID); !apperrors.IsNotFound(err) {
		t.Errorf("Get() after DeleteOrphan error = %v, want not found", err)
	}
	if err := svc.DeleteOrphan(ctx, "no-such-id"); !apperrors.IsNotFound(err) {
		t.Errorf("DeleteOrphan(unknown) error = %v, want not found", err)
	}
}

func TestDeleteLegacyTitleFile(t *testing.T) {
	svc, _, docs := newTestService(t)

	item, _ := svc.Download(context.Background(), "https://youtu.be/abc", "Old Song", "")
	current, _ := svc.Locate(item)
	legacy := filepath.Join(docs, "Old Song.m4a")
	if err := os.Rename(current, legacy); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(context.Background(), item.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Errorf("legacy file still present: %v", err)
	}
}

func TestPlaylistsAndCovers(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.WithCovers(&fakeCovers{dir: "/covers"})

	a, _ := svc.Download(context.Background(), "https://youtu.be/a", "A", "")
	b, _ := svc.Download(context.Background(), "https://youtu.be/b", "B", "")

	p, err := svc.CreatePlaylist("Favourites")
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	svc.AddToPlaylist(p.ID, b.ID)
	svc.AddToPlaylist(p.ID, a.ID)

	tracks, err := svc.Tracks(context.Background(), store.Scope{PlaylistID: p.ID})
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}
	if len(tracks) != 2 || tracks[0].ID != b.ID {
		t.Errorf("Tracks() order wrong")
	}

	path, err := svc.SetCoverImage(context.Background(), a.ID, "https://img/x.png")
	if err != nil {
		t.Fatalf("SetCoverImage() error = %v", err)
	}
	got, _ := svc.Get(a.ID)
	if got.CoverImageRef != path {
		t.Errorf("CoverImageRef = %q, want %q", got.CoverImageRef, path)
	}

	if _, err := svc.SetCoverImage(context.Background(), "missing", "https://img/x.png"); !apperrors.IsNotFound(err) {
		t.Errorf("SetCoverImage(missing) error = %v, want not found", err)
	}

	playlists, _ := svc.ListPlaylists()
	if len(playlists) != 1 || playlists[0].ItemCount != 2 {
		t.Errorf("ListPlaylists() = %+v", playlists)
	}

	if err := svc.DeletePlaylist(p.ID); err != nil {
		t.Fatalf("DeletePlaylist() error = %v", err)
	}
	if items, _ := svc.List(store.AllItems); len(items) != 2 {
		t.Errorf("items after playlist delete = %d, want 2", len(items))
	}
}

func TestDownloadSanitizesTitle(t *testing.T) {
	svc, _, _ := newTestService(t)

	item, err := svc.Download(context.Background(), "https://youtu.be/abc", "  Song\x00 \n (Live)\x07 ", "")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if item.Title != "Song (Live)" {
		t.Errorf("Title = %q, want sanitized title", item.Title)
	}
}

func TestImportPlaylist(t *testing.T) {
	svc, acq, _ := newTestService(t)

	entries := []resolver.Entry{
		{VideoID: "v1", Title: "One", Link: resolver.WatchURL("v1")},
		{VideoID: "v2", Title: "Two", Link: resolver.WatchURL("v2")},
		{VideoID: "v3", Title: "Three", Link: resolver.WatchURL("v3")},
		{VideoID: "v4", Title: "Four", Link: resolver.WatchURL("v4")},
	}
	acq.fail[entries[1].Link] = apperrors.NewResolutionError("unavailable", nil)
	svc.WithExpander(&fakeExpander{entries: entries})

	result, err := svc.ImportPlaylist(context.Background(), "https://www.youtube.com/playlist?list=PL9", "")
	if err != nil {
		t.Fatalf("ImportPlaylist() error = %v", err)
	}

	if !strings.Contains(result.Playlist.Name, "PL9") {
		t.Errorf("default playlist name = %q", result.Playlist.Name)
	}
	if len(result.Failures) != 1 || result.Failures[0].Title != "Two" {
		t.Errorf("Failures = %+v, want entry Two", result.Failures)
	}

	tracks, err := svc.List(store.Scope{PlaylistID: result.Playlist.ID})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"One", "Three", "Four"}
	if len(tracks) != len(want) {
		t.Fatalf("len(tracks) = %d, want %d", len(tracks), len(want))
	}
	for i, title := range want {
		if tracks[i].Title != title {
			t.Errorf("tracks[%d] = %s, want %s", i, tracks[i].Title, title)
		}
	}
	if acq.calls != 4 {
		t.Errorf("acquire calls = %d, want 4", acq.calls)
	}
}

func TestImportPlaylistExpandError(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.WithExpander(&fakeExpander{err: apperrors.NewResolutionError("private playlist", nil)})

	if _, err := svc.ImportPlaylist(context.Background(), "https://www.youtube.com/playlist?list=PL9", "x"); !apperrors.IsResolution(err) {
		t.Errorf("ImportPlaylist() error = %v, want resolution", err)
	}
	playlists, _ := svc.ListPlaylists()
	if len(playlists) != 0 {
		t.Errorf("no playlist should be created when expansion fails")
	}
}
