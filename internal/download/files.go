package download

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

// AudioExt is the extension of every persisted audio file
const AudioExt = ".m4a"

// AudioPath returns the current on-disk location of item id
func AudioPath(documentsDir, id string) string {
	return filepath.Join(documentsDir, id+AudioExt)
}

// legacyAudioPath returns the title-based location used by older records,
// or "" when the title cannot name a file directly inside documentsDir.
func legacyAudioPath(documentsDir, title string) string {
	if title == "" || title == "." || title == ".." || filepath.Base(title) != title {
		return ""
	}
	return filepath.Join(documentsDir, title+AudioExt)
}

// Locate finds the audio file of an item. It probes exactly two names, the
// current {id}.m4a and then the legacy {title}.m4a, and fails with a file not
// found error when neither exists. The id name goes first because titles are
// not unique. New naming schemes need a migration, not a third probe.
func Locate(documentsDir, id, title string) (string, error) {
	candidates := []string{AudioPath(documentsDir, id), legacyAudioPath(documentsDir, title)}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", apperrors.NewFileNotFoundError(fmt.Sprintf("no audio file for item %s", id))
}

// Persist copies srcPath to {documentsDir}/{id}.m4a as a single replace.
// Bytes are staged in a hidden file in the same directory and renamed over any
// existing file, so readers never see a partial write. Returns the final path
// and the number of bytes written.
func Persist(documentsDir, id, srcPath string) (string, int64, error) {
	if err := os.MkdirAll(documentsDir, 0755); err != nil {
		return "", 0, apperrors.NewPersistenceError("failed to create documents directory", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", 0, apperrors.NewPersistenceError("failed to open downloaded file", err)
	}
	defer src.Close()

	staging, err := os.CreateTemp(documentsDir, "."+id+"-*.partial")
	if err != nil {
		return "", 0, apperrors.NewPersistenceError("failed to create staging file", err)
	}
	stagingPath := staging.Name()

	written, err := io.Copy(staging, src)
	if err == nil {
		err = staging.Sync()
	}
	if closeErr := staging.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(stagingPath)
		return "", 0, apperrors.NewPersistenceError("failed to write audio file", err)
	}

	finalPath := AudioPath(documentsDir, id)
	if err := os.Remove(finalPath); err != nil && !os.IsNotExist(err) {
		os.Remove(stagingPath)
		return "", 0, apperrors.NewPersistenceError("failed to replace existing audio file", err)
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		os.Remove(stagingPath)
		return "", 0, apperrors.NewPersistenceError("failed to move audio file into place", err)
	}

	return finalPath, written, nil
}

// RemoveAudio deletes the audio file of an item, wherever Locate finds it
func RemoveAudio(documentsDir, id, title string) error {
	path, err := Locate(documentsDir, id, title)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return apperrors.NewPersistenceError("failed to delete audio file", err)
	}
	return nil
}
