package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/guidedpath/onboard-lms/internal/extract"
	"github.com/guidedpath/onboard-lms/internal/storage"
)

const handbook = "Visitors must sign in at reception and wear a badge at all " +
	"times. Staff escorting visitors are responsible for their conduct on site."

func newService(t *testing.T) *Service {
	t.Helper()
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ex, err := extract.New(extract.NewPlainTextDecoder())
	if err != nil {
		t.Fatal(err)
	}
	return NewService(NewInMemoryStore(), blobs, ex)
}

func TestUploadThenText(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	d, err := svc.Upload(ctx, "d1", "handbook.txt", strings.NewReader(handbook))
	if err != nil {
		t.Fatal(err)
	}
	if d.BlobKey != "documents/d1" {
		t.Fatalf("blob key = %q", d.BlobKey)
	}

	text, err := svc.Text(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if text != handbook {
		t.Fatalf("text = %q", text)
	}
}

func TestTextIsCachedAfterFirstExtraction(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "d1", "handbook.txt", strings.NewReader(handbook)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Text(ctx, "d1"); err != nil {
		t.Fatal(err)
	}

	d, err := svc.Store().Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Text == nil || d.ExtractedAt == nil {
		t.Fatal("extraction result not cached on the row")
	}
}

func TestReuploadResetsCachedText(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "d1", "handbook.txt", strings.NewReader(handbook)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Text(ctx, "d1"); err != nil {
		t.Fatal(err)
	}

	revised := "Visitor badges are issued at the security office. Escorts must " +
		"remain with their visitors for the full duration of every site visit."
	if _, err := svc.Upload(ctx, "d1", "handbook.txt", strings.NewReader(revised)); err != nil {
		t.Fatal(err)
	}
	d, err := svc.Store().Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Text != nil {
		t.Fatal("re-upload left stale cached text on the row")
	}
	text, err := svc.Text(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if text != revised {
		t.Fatalf("got %q, want text extracted from the new bytes", text)
	}
}

func TestTextInsufficientPassesThrough(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.Upload(ctx, "d1", "note.txt", strings.NewReader("just a note")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Text(ctx, "d1"); !errors.Is(err, extract.ErrInsufficientText) {
		t.Fatalf("got %v, want ErrInsufficientText", err)
	}
}

func TestTextUnknownDocument(t *testing.T) {
	svc := newService(t)
	if _, err := svc.Text(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
