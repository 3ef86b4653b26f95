package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/vibe/vibe-go/internal/errors"
)

// AudioItem is one downloaded track
type AudioItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceLink      string    `json:"source_link"`
	CoverImageRef   string    `json:"cover_image_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Playlist is a named, ordered list of audio items
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	ItemCount int       `json:"item_count"`
}

// Scope selects the tracks of a queue: the whole library or one playlist
type Scope struct {
	PlaylistID string
}

// AllItems is the scope of the whole library
var AllItems = Scope{}

// IsAll reports whether the scope is the whole library
func (s Scope) IsAll() bool {
	return s.PlaylistID == ""
}

func (s Scope) String() string {
	if s.IsAll() {
		return "all"
	}
	return "playlist:" + s.PlaylistID
}

// LibraryStore manages audio items and playlists in the database
type LibraryStore struct {
	db *sql.DB
}

// NewLibraryStore creates a new LibraryStore
func NewLibraryStore(db *sql.DB) *LibraryStore {
	return &LibraryStore{db: db}
}

// Save inserts item, or replaces the record with the same id
func (ls *LibraryStore) Save(item *AudioItem) error {
	if item.ID == "" {
		return apperrors.NewValidationError("audio item id cannot be empty")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audio_items (id, title, source_link, cover_image_ref, created_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source_link = excluded.source_link,
			cover_image_ref = excluded.cover_image_ref,
			duration_seconds = excluded.duration_seconds
	`

	_, err := ls.db.Exec(
		query,
		item.ID,
		item.Title,
		item.SourceLink,
		nullString(item.CoverImageRef),
		item.CreatedAt,
		item.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to save audio item: %w", err)
	}

	return nil
}

// GetByID retrieves an audio item by ID
func (ls *LibraryStore) GetByID(id string) (*AudioItem, error) {
	query := `
		SELECT id, title, source_link, cover_image_ref, created_at, duration_seconds
		FROM audio_items
		WHERE id = ?
	`

	item, err := scanItem(ls.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("audio item not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audio item: %w", err)
	}

	return item, nil
}

// FetchAll returns the items of scope: the whole library in creation order,
// or one playlist in playlist order.
func (ls *LibraryStore) FetchAll(scope Scope) ([]*AudioItem, error) {
	var rows *sql.Rows
	var err error

	if scope.IsAll() {
		rows, err = ls.db.Query(`
			SELECT id, title, source_link, cover_image_ref, created_at, duration_seconds
			FROM audio_items
			ORDER BY created_at ASC, rowid ASC
		`)
	} else {
		if _, perr := ls.GetPlaylist(scope.PlaylistID); perr != nil {
			return nil, perr
		}
		rows, err = ls.db.Query(`
			SELECT a.id, a.title, a.source_link, a.cover_image_ref, a.created_at, a.duration_seconds
			FROM playlist_items p
			JOIN audio_items a ON a.id = p.item_id
			WHERE p.playlist_id = ?
			ORDER BY p.position ASC
		`, scope.PlaylistID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio items: %w", err)
	}
	defer rows.Close()

	items := make([]*AudioItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audio item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Delete removes an audio item and its playlist memberships
func (ls *LibraryStore) Delete(id string) error {
	tx, err := ls.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM playlist_items WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete playlist entries: %w", err)
	}

	result, err := tx.Exec("DELETE FROM audio_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete audio item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("audio item not found: %s", id))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateCoverImage sets the cover reference of an item
func (ls *LibraryStore) UpdateCoverImage(id, ref string) error {
	result, err := ls.db.Exec("UPDATE audio_items SET cover_image_ref = ? WHERE id = ?", nullString(ref), id)
	if err != nil {
		return fmt.Errorf("failed to update cover image: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("audio item not found: %s", id))
	}
	return nil
}

// Count returns the number of audio items
func (ls *LibraryStore) Count() (int, error) {
	var count int
	if err := ls.db.QueryRow("SELECT COUNT(*) FROM audio_items").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audio items: %w", err)
	}
	return count, nil
}

// CreatePlaylist creates an empty playlist
func (ls *LibraryStore) CreatePlaylist(name string) (*Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("playlist name cannot be empty")
	}

	p := &Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}

	_, err := ls.db.Exec("INSERT INTO playlists (id, name, created_at) VALUES (?, ?, ?)", p.ID, p.Name, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	return p, nil
}

// GetPlaylist retrieves a playlist by ID
func (ls *LibraryStore) GetPlaylist(id string) (*Playlist, error) {
	query := `
		SELECT p.id, p.name, p.created_at, COUNT(i.item_id)
		FROM playlists p
		LEFT JOIN playlist_items i ON i.playlist_id = p.id
		WHERE p.id = ?
		GROUP BY p.id
	`

	p := &Playlist{}
	err := ls.db.QueryRow(query, id).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.ItemCount)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("playlist not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return p, nil
}

// ListPlaylists returns all playlists in creation order
func (ls *LibraryStore) ListPlaylists() ([]*Playlist, error) {
	rows, err := ls.db.Query(`
		SELECT p.id, p.name, p.created_at, COUNT(i.item_id)
		FROM playlists p
		LEFT JOIN playlist_items i ON i.playlist_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at ASC, p.rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]*Playlist, 0)
	for rows.Next() {
		p := &Playlist{}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// AddToPlaylist appends an item to the end of a playlist. Adding an item that
// is already a member is a no-op.
func (ls *LibraryStore) AddToPlaylist(playlistID, itemID string) error {
	if _, err := ls.GetPlaylist(playlistID); err != nil {
		return err
	}
	if _, err := ls.GetByID(itemID); err != nil {
		return err
	}

	_, err := ls.db.Exec(`
		INSERT OR IGNORE INTO playlist_items (playlist_id, item_id, position)
		SELECT ?, ?, COALESCE(MAX(position), -1) + 1
		FROM playlist_items
		WHERE playlist_id = ?
	`, playlistID, itemID, playlistID)
	if err != nil {
		return fmt.Errorf("failed to add item to playlist: %w", err)
	}
	return nil
}

// DeletePlaylist removes a playlist; its items stay in the library
func (ls *LibraryStore) DeletePlaylist(id string) error {
	result, err := ls.db.Exec("DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("playlist not found: %s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*AudioItem, error) {
	item := &AudioItem{}
	var cover sql.NullString
	var duration sql.NullFloat64

	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.SourceLink,
		&cover,
		&item.CreatedAt,
		&duration,
	); err != nil {
		return nil, err
	}

	if cover.Valid {
		item.CoverImageRef = cover.String
	}
	if duration.Valid {
		item.DurationSeconds = duration.Float64
	}
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
