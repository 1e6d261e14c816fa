package document

import (
	"context"
	"io"
	"time"

	"github.com/guidedpath/onboard-lms/internal/extract"
	"github.com/guidedpath/onboard-lms/internal/storage"
)

// Service joins the blob store, the document index and the text
// extractor. Text is extracted on first use and cached on the row.
type Service struct {
	store Store
	blobs storage.BlobStore
	ex    *extract.Extractor
	now   func() time.Time
}

func NewService(store Store, blobs storage.BlobStore, ex *extract.Extractor) *Service {
	return &Service{store: store, blobs: blobs, ex: ex, now: time.Now}
}

func (s *Service) Store() Store { return s.store }

// Upload writes the bytes into blob storage and registers the document.
func (s *Service) Upload(ctx context.Context, id, name string, r io.Reader) (Document, error) {
	key := "documents/" + id
	if _, err := s.blobs.Put(key, r); err != nil {
		return Document{}, err
	}
	d := Document{ID: id, Name: name, BlobKey: key}
	if err := s.store.Put(ctx, d); err != nil {
		return Document{}, err
	}
	return d, nil
}

// Text returns the document's plain text, extracting and caching it if
// this is the first request. Extraction errors pass through untouched
// so callers can map InsufficientText vs Malformed.
func (s *Service) Text(ctx context.Context, id string) (string, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if d.Text != nil {
		return *d.Text, nil
	}
	rc, err := s.blobs.Get(d.BlobKey)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	text, err := s.ex.Extract(data)
	if err != nil {
		return "", err
	}
	if err := s.store.SetText(ctx, id, text, s.now().Unix()); err != nil {
		return "", err
	}
	return text, nil
}
