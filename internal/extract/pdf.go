package extract

import (
	"bytes"
	"fmt"
	"io"

	pdf "github.com/ledongthuc/pdf"
)

// PDFDecoder decodes PDF documents. It sniffs the %PDF- magic before
// parsing so corrupt or mislabeled uploads fail as Malformed instead of
// panicking inside the reader.
type PDFDecoder struct{}

func NewPDFDecoder() *PDFDecoder { return &PDFDecoder{} }

// Initialize reports whether the decoder is usable. The reader is pure
// Go with no runtime assets to load, so there is nothing to probe.
func (d *PDFDecoder) Initialize() error { return nil }

func (d *PDFDecoder) Decode(data []byte) (text string, err error) {
	if !isPDF(data) {
		return "", fmt.Errorf("%w: missing %%PDF header", ErrMalformed)
	}
	// the reader panics on some truncated files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(b), nil
}

func isPDF(b []byte) bool {
	// PDF starts with "%PDF-"
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// PlainTextDecoder accepts anything that looks like text. Used for .txt
// and .md reference material and as the test decoder.
type PlainTextDecoder struct{}

func NewPlainTextDecoder() *PlainTextDecoder { return &PlainTextDecoder{} }

func (d *PlainTextDecoder) Initialize() error { return nil }

func (d *PlainTextDecoder) Decode(data []byte) (string, error) {
	if !isProbablyText(data) {
		return "", fmt.Errorf("%w: binary content", ErrMalformed)
	}
	return string(data), nil
}

// isProbablyText: most bytes printable/whitespace, no NULs.
func isProbablyText(b []byte) bool {
	n := len(b)
	if n > 4096 {
		n = 4096
	}
	sample := b[:n]
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	if len(sample) == 0 {
		return false
	}
	return float64(good)/float64(len(sample)) > 0.9
}

// SniffingDecoder routes to the PDF or plain-text decoder by magic
// bytes, the default wiring for document uploads.
type SniffingDecoder struct {
	pdf  *PDFDecoder
	text *PlainTextDecoder
}

func NewSniffingDecoder() *SniffingDecoder {
	return &SniffingDecoder{pdf: NewPDFDecoder(), text: NewPlainTextDecoder()}
}

func (d *SniffingDecoder) Initialize() error {
	if err := d.pdf.Initialize(); err != nil {
		return err
	}
	return d.text.Initialize()
}

func (d *SniffingDecoder) Decode(data []byte) (string, error) {
	if isPDF(data) {
		return d.pdf.Decode(data)
	}
	if isProbablyText(data) {
		return d.text.Decode(data)
	}
	return "", fmt.Errorf("%w: unrecognized content", ErrMalformed)
}
