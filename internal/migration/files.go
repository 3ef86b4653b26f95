// Package migration moves library audio files from the legacy title-based
// naming to the id-based naming.
package migration

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vibe/vibe-go/internal/download"
	apperrors "github.com/vibe/vibe-go/internal/errors"
	"github.com/vibe/vibe-go/internal/store"
)

// ItemSource lists library records
type ItemSource interface {
	FetchAll(scope store.Scope) ([]*store.AudioItem, error)
}

// LegacyFile is a library item whose audio still uses the legacy name
type LegacyFile struct {
	ItemID  string
	Title   string
	OldPath string
	NewPath string
	// Conflict is set when several items claim the same legacy file
	Conflict bool
}

// Result contains the results of the migration
type Result struct {
	Renamed   int
	Conflicts int
	Missing   int
	Errors    []error
}

// Migrator renames legacy audio files
type Migrator struct {
	items        ItemSource
	documentsDir string
	logger       *zap.Logger
}

// NewMigrator creates a new Migrator
func NewMigrator(items ItemSource, documentsDir string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{items: items, documentsDir: documentsDir, logger: logger}
}

// Detect lists the items whose audio is found under the legacy name.
// Items with no audio file at all are counted in missing.
func (m *Migrator) Detect() (legacy []LegacyFile, missing int, err error) {
	items, err := m.items.FetchAll(store.AllItems)
	if err != nil {
		return nil, 0, err
	}

	for _, item := range items {
		path, err := download.Locate(m.documentsDir, item.ID, item.Title)
		if err != nil {
			if apperrors.IsFileNotFound(err) {
				missing++
				continue
			}
			return nil, 0, err
		}

		newPath := download.AudioPath(m.documentsDir, item.ID)
		if path == newPath {
			continue
		}

		legacy = append(legacy, LegacyFile{
			ItemID:  item.ID,
			Title:   item.Title,
			OldPath: path,
			NewPath: newPath,
		})
	}

	claims := make(map[string]int, len(legacy))
	for _, f := range legacy {
		claims[f.OldPath]++
	}
	for i := range legacy {
		legacy[i].Conflict = claims[legacy[i].OldPath] > 1
	}

	return legacy, missing, nil
}

// Migrate renames every legacy file to its id-based name. Files claimed by
// more than one item are left alone and counted as conflicts.
func (m *Migrator) Migrate() *Result {
	result := &Result{}

	legacy, missing, err := m.Detect()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("detection failed: %w", err))
		return result
	}
	result.Missing = missing

	for _, f := range legacy {
		if f.Conflict {
			result.Conflicts++
			m.logger.Warn("legacy file left in place, shared by several items",
				zap.String("item_id", f.ItemID),
				zap.String("path", f.OldPath))
			continue
		}

		if err := os.Rename(f.OldPath, f.NewPath); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to rename %s: %w", f.OldPath, err))
			continue
		}
		result.Renamed++
		m.logger.Info("legacy file renamed",
			zap.String("item_id", f.ItemID),
			zap.String("from", f.OldPath),
			zap.String("to", f.NewPath))
	}

	return result
}
