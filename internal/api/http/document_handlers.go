package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/guidedpath/onboard-lms/internal/document"
	"github.com/guidedpath/onboard-lms/internal/synth"
)

const maxUploadBytes = 32 << 20

// UploadDocumentHandler accepts a multipart "file" field and registers
// the document. Text extraction is deferred until first use.
func UploadDocumentHandler(svc *document.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "bad_upload", "expected multipart form with a file field")
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_upload", "file field is required")
			return
		}
		defer f.Close()
		d, err := svc.Upload(r.Context(), uuid.NewString(), hdr.Filename, f)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// GenerateQuestionsHandler runs extraction (cached) and synthesis for a
// stored document. Either a full question set comes back or an error;
// never a partial bank.
func GenerateQuestionsHandler(svc *document.Service, s *synth.Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Count int `json:"count"`
		}
		// body is optional; an empty read means length-derived count
		_ = json.NewDecoder(r.Body).Decode(&req)

		text, err := svc.Text(r.Context(), chi.URLParam(r, "docID"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		questions, err := s.Synthesize(text, req.Count)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		preview := text
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"questions":              questions,
			"extracted_text_preview": preview,
		})
	}
}
