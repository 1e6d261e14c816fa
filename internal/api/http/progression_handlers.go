package http

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	auth "github.com/guidedpath/onboard-lms/internal/auth/middleware"
	"github.com/guidedpath/onboard-lms/internal/cert"
	"github.com/guidedpath/onboard-lms/internal/progression"
)

// UpsertProgressionHandler lets the authoring side create or replace a
// progression definition.
func UpsertProgressionHandler(store progression.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p progression.Progression
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "request body is not valid JSON")
			return
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if err := normalizeDefinition(&p); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_definition", err.Error())
			return
		}
		if err := store.PutProgression(r.Context(), p); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// GetProgressionHandler serves the learner-safe view: answer keys are
// stripped before anything leaves the engine.
func GetProgressionHandler(store progression.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.GetProgression(r.Context(), chi.URLParam(r, "progressionID"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p.Public())
	}
}

func StartHandler(m *progression.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner := auth.LearnerFromContext(r.Context())
		sum, err := m.Start(r.Context(), chi.URLParam(r, "progressionID"), learner.ID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func ConfirmStepHandler(m *progression.Machine, store progression.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Responses []struct {
				QuestionID string      `json:"question_id"`
				Answer     interface{} `json:"answer"`
			} `json:"responses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "request body is not valid JSON")
			return
		}
		learner := auth.LearnerFromContext(r.Context())
		sub, err := store.LatestSubmission(r.Context(), chi.URLParam(r, "progressionID"), learner.ID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		responses := make(map[string]interface{}, len(req.Responses))
		for _, rr := range req.Responses {
			responses[rr.QuestionID] = rr.Answer
		}
		res, err := m.Confirm(r.Context(), sub.ID, chi.URLParam(r, "stepID"), responses)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func CompleteHandler(g *cert.Gate, store progression.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner := auth.LearnerFromContext(r.Context())
		sub, err := store.LatestSubmission(r.Context(), chi.URLParam(r, "progressionID"), learner.ID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		out, err := g.Evaluate(r.Context(), sub.ID, cert.Identity{
			ID:         learner.ID,
			Name:       learner.Name,
			Country:    learner.Country,
			Department: learner.Department,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if out.Eligible {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"eligible":       true,
				"score":          out.Score,
				"credential_ref": out.Credential.ID,
				"credential":     out.Credential,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"eligible": false,
			"score":    out.Score,
			"reasons":  out.Reasons,
			"terminal": out.Terminal,
		})
	}
}

func GetSubmissionHandler(m *progression.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := m.Get(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// RetreatHandler steps the cursor back one position without losing
// confirmed state.
func RetreatHandler(m *progression.Machine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := m.Retreat(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// normalizeDefinition enforces the structural invariants: contiguous
// 0-based step order, choice answers present verbatim in options.
func normalizeDefinition(p *progression.Progression) error {
	sort.Slice(p.Steps, func(i, j int) bool { return p.Steps[i].Order < p.Steps[j].Order })
	for i := range p.Steps {
		st := &p.Steps[i]
		st.Order = i
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		for j := range st.Questions {
			q := &st.Questions[j]
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			if q.Type == progression.TypeChoice || q.Type == progression.TypeYesNo {
				if len(q.AnswerKey) == 0 {
					return &definitionError{"choice question " + q.ID + " has no answer key"}
				}
				if !containsString(q.Options, q.AnswerKey[0]) {
					return &definitionError{"choice question " + q.ID + ": answer not present in options"}
				}
			}
		}
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return nil
}

type definitionError struct{ msg string }

func (e *definitionError) Error() string { return e.msg }

func containsString(arr []string, s string) bool {
	for _, v := range arr {
		if v == s {
			return true
		}
	}
	return false
}
