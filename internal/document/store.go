// Package document tracks uploaded reference documents and their
// extracted text. Extraction is cached: the text column is null until
// the first successful extraction and overwritten on re-extraction.
package document

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BlobKey     string  `json:"blob_key"`
	Text        *string `json:"-"` // cached plain text, nil until extracted
	ExtractedAt *int64  `json:"extracted_at,omitempty"`
}

type Store interface {
	Put(ctx context.Context, d Document) error
	Get(ctx context.Context, id string) (Document, error)
	SetText(ctx context.Context, id, text string, extractedAt int64) error
}

// --- SQL ---

type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Put(ctx context.Context, d Document) error {
	// Re-registering an id replaces the cached text too; new bytes
	// must be re-extracted, never served from the old cache.
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents (id,name,blob_key,text,extracted_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, blob_key=EXCLUDED.blob_key,
			text=EXCLUDED.text, extracted_at=EXCLUDED.extracted_at`,
		d.ID, d.Name, d.BlobKey, d.Text, d.ExtractedAt)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,blob_key,text,extracted_at FROM documents WHERE id=$1`, id)
	var d Document
	var text sql.NullString
	var at sql.NullInt64
	if err := row.Scan(&d.ID, &d.Name, &d.BlobKey, &text, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if text.Valid {
		v := text.String
		d.Text = &v
	}
	if at.Valid {
		v := at.Int64
		d.ExtractedAt = &v
	}
	return d, nil
}

func (s *SQLStore) SetText(ctx context.Context, id, text string, extractedAt int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET text=$1, extracted_at=$2 WHERE id=$3`,
		text, extractedAt, id)
	return err
}

// --- memory ---

type memoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewInMemoryStore() Store {
	return &memoryStore{docs: map[string]Document{}}
}

func (m *memoryStore) Put(_ context.Context, d Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = d
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (m *memoryStore) SetText(_ context.Context, id, text string, extractedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	d.Text = &text
	d.ExtractedAt = &extractedAt
	m.docs[id] = d
	return nil
}
