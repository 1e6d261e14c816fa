package extract

import (
	"errors"
	"strings"
	"testing"
)

const handbookText = "All staff must complete the safety orientation before their " +
	"first shift. Protective equipment is issued at the front desk and must be " +
	"returned at the end of each day."

func newTextExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(NewPlainTextDecoder())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewRejectsNilDecoder(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrDecoderUnavailable) {
		t.Fatalf("got %v, want ErrDecoderUnavailable", err)
	}
}

func TestExtractPlainText(t *testing.T) {
	e := newTextExtractor(t)
	got, err := e.Extract([]byte(handbookText))
	if err != nil {
		t.Fatal(err)
	}
	if got != handbookText {
		t.Fatalf("text altered: %q", got)
	}
}

func TestExtractCollapsesWhitespace(t *testing.T) {
	e := newTextExtractor(t)
	messy := strings.ReplaceAll(handbookText, " ", "  \n\t")
	got, err := e.Extract([]byte(messy))
	if err != nil {
		t.Fatal(err)
	}
	if got != handbookText {
		t.Fatalf("whitespace not normalized: %q", got)
	}
}

func TestExtractIsRepeatable(t *testing.T) {
	e := newTextExtractor(t)
	a, err := e.Extract([]byte(handbookText))
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Extract([]byte(handbookText))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("same bytes produced different text")
	}
}

func TestExtractInsufficientText(t *testing.T) {
	e := newTextExtractor(t)
	if _, err := e.Extract([]byte("too short to learn from")); !errors.Is(err, ErrInsufficientText) {
		t.Fatalf("got %v, want ErrInsufficientText", err)
	}
}

func TestExtractEmptyDocumentMalformed(t *testing.T) {
	e := newTextExtractor(t)
	if _, err := e.Extract(nil); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestPlainTextDecoderRejectsBinary(t *testing.T) {
	d := NewPlainTextDecoder()
	if _, err := d.Decode([]byte{0x00, 0x01, 0x02, 0xFF}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestPDFDecoderRejectsMissingHeader(t *testing.T) {
	d := NewPDFDecoder()
	if _, err := d.Decode([]byte("not a pdf at all")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestSniffingDecoderRoutesText(t *testing.T) {
	e, err := New(NewSniffingDecoder())
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Extract([]byte(handbookText))
	if err != nil {
		t.Fatal(err)
	}
	if got != handbookText {
		t.Fatalf("sniffed text altered: %q", got)
	}
	// truncated PDF header routes to the PDF decoder and fails cleanly
	if _, err := e.Extract([]byte("%PDF-1.7 garbage")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed for truncated pdf", err)
	}
}
