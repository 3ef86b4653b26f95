package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

const defaultChunkSize = 32 * 1024

// Progress is one byte-level progress report of a transfer
type Progress struct {
	Fraction      float64 // 0 when BytesExpected is unknown
	BytesReceived int64
	BytesExpected int64 // <= 0 when the server sent no content length
}

// Downloader performs a single HTTP transfer into a temporary file.
// Instances hold no per-transfer state; callers still build a fresh one per attempt.
type Downloader struct {
	client    *http.Client
	tempDir   string
	chunkSize int
}

// NewDownloader creates a downloader using client, or the shared client when nil
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = GetDefaultClient()
	}
	return &Downloader{
		client:    client,
		chunkSize: defaultChunkSize,
	}
}

// WithTempDir places temporary files in dir instead of the OS default
func (d *Downloader) WithTempDir(dir string) *Downloader {
	d.tempDir = dir
	return d
}

// Download fetches url into a temporary file and returns its path.
// Progress reports are sent on progress without blocking; reports that find the
// channel full are dropped. Nothing is sent after Download returns.
// All failures are transfer errors; the partial file is removed on failure.
func (d *Downloader) Download(ctx context.Context, url string, progress chan<- Progress) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.NewTransferError("failed to create request", http.StatusBadRequest, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", apperrors.NewTransferError("request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.NewTransferError(
			fmt.Sprintf("download failed with status: %d", resp.StatusCode), resp.StatusCode, nil)
	}

	outFile, err := os.CreateTemp(d.tempDir, "vibe-download-*.tmp")
	if err != nil {
		return "", apperrors.NewTransferError("failed to create temp file", 0, err)
	}
	tempPath := outFile.Name()

	if err := d.copyWithProgress(ctx, outFile, resp.Body, resp.ContentLength, progress); err != nil {
		outFile.Close()
		os.Remove(tempPath)
		return "", err
	}

	if err := outFile.Close(); err != nil {
		os.Remove(tempPath)
		return "", apperrors.NewTransferError("failed to close temp file", 0, err)
	}

	return tempPath, nil
}

func (d *Downloader) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, expected int64, progress chan<- Progress) error {
	buffer := make([]byte, d.chunkSize)
	var received int64

	for {
		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, err := dst.Write(buffer[:n]); err != nil {
				return apperrors.NewTransferError("failed to write temp file", 0, err)
			}
			received += int64(n)
			report(progress, received, expected)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return apperrors.NewTransferError("transfer cancelled", 0, ctx.Err())
			}
			return apperrors.NewTransferError("error reading response", 0, readErr)
		}
	}

	if expected > 0 && received < expected {
		return apperrors.NewTransferError(
			fmt.Sprintf("short body: got %d of %d bytes", received, expected), 0, io.ErrUnexpectedEOF)
	}

	return nil
}

func report(progress chan<- Progress, received, expected int64) {
	if progress == nil {
		return
	}

	p := Progress{BytesReceived: received, BytesExpected: expected}
	if expected > 0 {
		p.Fraction = float64(received) / float64(expected)
		if p.Fraction > 1 {
			p.Fraction = 1
		}
	}

	select {
	case progress <- p:
	default:
	}
}
