// Package archive keeps rendered exports in a SQLite database.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when no export has the requested id.
var ErrNotFound = errors.New("export not found")

// Entry is one archived export.
type Entry struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Platform    string    `json:"platform"`
	Title       string    `json:"title"`
	Model       string    `json:"model"`
	Topic       string    `json:"topic"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	Markdown    string    `json:"markdown,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store handles archive database operations.
type Store struct {
	db    *sql.DB
	index *Index
}

// New opens (creating if needed) the archive at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores e, assigning an id and creation time when they are unset.
func (s *Store) Save(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, url, platform, title, model, topic, filename, content_hash, markdown, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.Platform, e.Title, e.Model, e.Topic, e.Filename, e.ContentHash, e.Markdown, e.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert export: %w", err)
	}
	if s.index != nil {
		if err := s.index.add(e); err != nil {
			return e, fmt.Errorf("index export: %w", err)
		}
	}
	return e, nil
}

// Get returns the export with the given id, Markdown included.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, platform, title, model, topic, filename, content_hash, markdown, created_at
		 FROM exports WHERE id = ?`, id,
	).Scan(&e.ID, &e.URL, &e.Platform, &e.Title, &e.Model, &e.Topic, &e.Filename, &e.ContentHash, &e.Markdown, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get export: %w", err)
	}
	return e, nil
}

// List returns exports newest first, without their Markdown.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, platform, title, model, topic, filename, content_hash, created_at
		 FROM exports ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.URL, &e.Platform, &e.Title, &e.Model, &e.Topic, &e.Filename, &e.ContentHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return entries, nil
}

// Delete removes the export with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.index != nil {
		if err := s.index.remove(id); err != nil {
			return fmt.Errorf("unindex export: %w", err)
		}
	}
	return nil
}

// FindByHash returns the newest export of identical page content.
func (s *Store) FindByHash(ctx context.Context, hash string) (Entry, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM exports WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1`, hash,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("find export: %w", err)
	}
	return s.Get(ctx, id)
}
