package download

import (
	"context"
	"os"
	"sync"
	"testing"

	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/network"
)

// scriptedFetcher fails with the queued errors, then writes payload to a temp file
type scriptedFetcher struct {
	t        *testing.T
	dir      string
	payload  []byte
	failures []error

	mu       sync.Mutex
	attempts int
	block    bool
}

func (s *scriptedFetcher) factory() FetcherFactory {
	return func() Fetcher { return &attemptFetcher{parent: s} }
}

func (s *scriptedFetcher) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

type attemptFetcher struct {
	parent *scriptedFetcher
	used   bool
}

func (f *attemptFetcher) Download(ctx context.Context, url string, progress chan<- network.Progress) (string, error) {
	if f.used {
		f.parent.t.Error("fetcher instance reused across attempts")
	}
	f.used = true

	s := f.parent
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	block := s.block
	var failure error
	if attempt <= len(s.failures) {
		failure = s.failures[attempt-1]
	}
	s.mu.Unlock()

	total := int64(len(s.payload))
	progress <- network.Progress{Fraction: 0.5, BytesReceived: total / 2, BytesExpected: total}

	if block {
		<-ctx.Done()
		return "", apperrors.NewTransferError("transfer cancelled", 0, ctx.Err())
	}
	if failure != nil {
		return "", failure
	}

	progress <- network.Progress{Fraction: 1, BytesReceived: total, BytesExpected: total}

	file, err := os.CreateTemp(s.dir, "download-*.tmp")
	if err != nil {
		return "", err
	}
	defer file.Close()
	if _, err := file.Write(s.payload); err != nil {
		return "", err
	}
	return file.Name(), nil
}

type fakeResolver struct {
	url   string
	err   error
	calls int
	mu    sync.Mutex
}

func (r *fakeResolver) Resolve(ctx context.Context, link string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.url, r.err
}

func (r *fakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
