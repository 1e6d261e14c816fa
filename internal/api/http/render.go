package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/guidedpath/onboard-lms/internal/document"
	"github.com/guidedpath/onboard-lms/internal/extract"
	"github.com/guidedpath/onboard-lms/internal/progression"
	"github.com/guidedpath/onboard-lms/internal/synth"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, fields ...string) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: msg, Fields: fields}})
}

// writeEngineError maps engine errors to stable codes and statuses.
// Internal details never reach the wire.
func writeEngineError(w http.ResponseWriter, err error) {
	var ma *progression.MissingAnswersError
	switch {
	case errors.Is(err, progression.ErrNotFound), errors.Is(err, document.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, progression.ErrInvalidStepTransition):
		writeError(w, http.StatusConflict, "invalid_step_transition", "only the current step can be confirmed")
	case errors.Is(err, progression.ErrAttemptsExhausted):
		writeError(w, http.StatusForbidden, "attempts_exhausted", "no attempts remaining")
	case errors.Is(err, progression.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "already_completed", "submission is already completed")
	case errors.As(err, &ma):
		writeError(w, http.StatusUnprocessableEntity, "missing_required_answers",
			"required questions were not answered", ma.QuestionIDs...)
	case errors.Is(err, synth.ErrTextTooShort):
		writeError(w, http.StatusUnprocessableEntity, "text_too_short",
			"document text is too short to generate questions; supply a longer text-based document")
	case errors.Is(err, extract.ErrInsufficientText):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_text",
			"no usable text found; supply a text-based document")
	case errors.Is(err, extract.ErrMalformed):
		writeError(w, http.StatusUnprocessableEntity, "malformed_document", "document could not be parsed")
	case errors.Is(err, extract.ErrDecoderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "decoder_unavailable", "document decoder is unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
