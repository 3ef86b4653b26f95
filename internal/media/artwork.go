package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

// DefaultCoverSize is the longest edge of stored cover thumbnails
const DefaultCoverSize = 500

// maxCoverBytes bounds how much of a remote image is read
const maxCoverBytes = 10 << 20

// CoverStore saves cover thumbnails under {documentsDir}/covers
type CoverStore struct {
	dir    string
	size   int
	client *http.Client
}

// NewCoverStore creates a cover store rooted at documentsDir
func NewCoverStore(documentsDir string, size int, client *http.Client) *CoverStore {
	if size <= 0 {
		size = DefaultCoverSize
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CoverStore{
		dir:    filepath.Join(documentsDir, "covers"),
		size:   size,
		client: client,
	}
}

// Path returns where the thumbnail of item id is stored
func (c *CoverStore) Path(id string) string {
	return filepath.Join(c.dir, id+".jpg")
}

// Save downloads imageURL, scales it and writes it as the thumbnail of item id.
// It returns the local path.
func (c *CoverStore) Save(ctx context.Context, id, imageURL string) (string, error) {
	if imageURL == "" {
		return "", apperrors.NewValidationError("cover image URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid cover image URL: %v", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.NewTransferError("failed to download cover image", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewTransferError(fmt.Sprintf("failed to download cover image: status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return "", apperrors.NewTransferError("failed to read cover image", 0, err)
	}

	thumb, err := Thumbnail(data, c.size)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", apperrors.NewPersistenceError("failed to create covers directory", err)
	}

	path := c.Path(id)
	if err := os.WriteFile(path, thumb, 0644); err != nil {
		return "", apperrors.NewPersistenceError("failed to write cover image", err)
	}
	return path, nil
}

// Remove deletes the stored thumbnail of item id, if any
func (c *CoverStore) Remove(id string) error {
	if err := os.Remove(c.Path(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Thumbnail decodes data and re-encodes it as a JPEG whose longest edge is at
// most size. Smaller images keep their dimensions.
func Thumbnail(data []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("failed to decode image: %v", err))
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > size || height > size {
		if width > height {
			img = resize.Resize(uint(size), 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, uint(size), img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
