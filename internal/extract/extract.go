// Package extract converts uploaded reference documents into plain text
// for the question synthesizer. Decoding is delegated to an injected
// Decoder so the extractor itself never assumes a file format.
package extract

import (
	"errors"
	"fmt"
	"strings"
)

// MinTextLen is the minimum trimmed length of extracted text. Anything
// shorter is treated as image-only or unparseable.
const MinTextLen = 50

var (
	ErrDecoderUnavailable = errors.New("decoder unavailable")
	ErrInsufficientText   = errors.New("insufficient text")
	ErrMalformed          = errors.New("malformed document")
)

// Decoder turns raw document bytes into text. Implementations must be
// stateless; Initialize is checked once at process startup.
type Decoder interface {
	Initialize() error
	Decode(data []byte) (string, error)
}

type Extractor struct {
	dec Decoder
}

// New verifies the decoder once and returns an Extractor bound to it.
func New(dec Decoder) (*Extractor, error) {
	if dec == nil {
		return nil, ErrDecoderUnavailable
	}
	if err := dec.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoderUnavailable, err)
	}
	return &Extractor{dec: dec}, nil
}

// Extract returns the document's plain text. Pure and repeatable: same
// bytes, same text.
func (e *Extractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrMalformed)
	}
	text, err := e.dec.Decode(data)
	if err != nil {
		return "", err
	}
	text = collapseWhitespace(text)
	if len(strings.TrimSpace(text)) <= MinTextLen {
		return "", ErrInsufficientText
	}
	return text, nil
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
