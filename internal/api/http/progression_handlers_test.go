package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	auth "github.com/guidedpath/onboard-lms/internal/auth/middleware"
	"github.com/guidedpath/onboard-lms/internal/cert"
	"github.com/guidedpath/onboard-lms/internal/grading"
	"github.com/guidedpath/onboard-lms/internal/progression"
)

// testRouter wires the learner routes the way the gateway does, with a
// fixed identity in place of the JWT middleware.
func testRouter(t *testing.T) (chi.Router, progression.Store) {
	t.Helper()
	store := progression.NewInMemoryStore()
	machine := progression.NewMachine(store, grading.NewValidator(), nil)
	gate := cert.NewGate(store, nil, 365)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.WithLearner(req.Context(), auth.Learner{ID: "u1", Name: "Alice", Country: "JP", Department: "Ops"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/progressions", UpsertProgressionHandler(store))
	r.Get("/progressions/{progressionID}", GetProgressionHandler(store))
	r.Post("/progressions/{progressionID}/start", StartHandler(machine))
	r.Post("/progressions/{progressionID}/steps/{stepID}/confirm", ConfirmStepHandler(machine, store))
	r.Post("/progressions/{progressionID}/complete", CompleteHandler(gate, store))
	r.Get("/submissions/{submissionID}", GetSubmissionHandler(machine))
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func definitionJSON() map[string]interface{} {
	return map[string]interface{}{
		"id":            "p1",
		"title":         "Orientation",
		"kind":          "orientation",
		"passing_score": 50,
		"max_attempts":  2,
		"steps": []map[string]interface{}{
			{"id": "s0", "title": "Quiz", "order": 0, "questions": []map[string]interface{}{
				{
					"id": "q1", "text": "Pick a", "type": "choice",
					"options": []string{"a", "b"}, "answer_key": []string{"a"},
					"required": true, "graded": true, "points": 1,
				},
			}},
		},
	}
}

func TestUpsertThenGetStripsAnswerKeys(t *testing.T) {
	r, _ := testRouter(t)
	if w := doJSON(t, r, "POST", "/progressions", definitionJSON()); w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d: %s", w.Code, w.Body)
	}

	w := doJSON(t, r, "GET", "/progressions/p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "answer_key") {
		t.Fatalf("answer key leaked to learner view: %s", w.Body)
	}
}

func TestUpsertRejectsAnswerNotInOptions(t *testing.T) {
	r, _ := testRouter(t)
	def := definitionJSON()
	def["steps"].([]map[string]interface{})[0]["questions"].([]map[string]interface{})[0]["answer_key"] = []string{"z"}

	w := doJSON(t, r, "POST", "/progressions", def)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestStartConfirmCompleteFlow(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, "POST", "/progressions", definitionJSON())

	w := doJSON(t, r, "POST", "/progressions/p1/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", w.Code, w.Body)
	}
	var sum progression.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Submission.Status != progression.StatusInProgress {
		t.Fatalf("status = %s", sum.Submission.Status)
	}

	w = doJSON(t, r, "POST", "/progressions/p1/steps/s0/confirm", map[string]interface{}{
		"responses": []map[string]interface{}{{"question_id": "q1", "answer": "a"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, "POST", "/progressions/p1/complete", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete status = %d: %s", w.Code, w.Body)
	}
	var out struct {
		Eligible      bool   `json:"eligible"`
		CredentialRef string `json:"credential_ref"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if !out.Eligible || out.CredentialRef == "" {
		t.Fatalf("complete body = %s", w.Body)
	}
}

func TestConfirmMissingRequiredReturns422WithFields(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, "POST", "/progressions", definitionJSON())
	doJSON(t, r, "POST", "/progressions/p1/start", nil)

	w := doJSON(t, r, "POST", "/progressions/p1/steps/s0/confirm", map[string]interface{}{
		"responses": []map[string]interface{}{},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body)
	}
	var body map[string]apiError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	e := body["error"]
	if e.Code != "missing_required_answers" {
		t.Fatalf("code = %s", e.Code)
	}
	if len(e.Fields) != 1 || e.Fields[0] != "q1" {
		t.Fatalf("fields = %v, want [q1]", e.Fields)
	}
}

func TestConfirmWrongStepReturnsConflict(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, "POST", "/progressions", definitionJSON())
	doJSON(t, r, "POST", "/progressions/p1/start", nil)

	w := doJSON(t, r, "POST", "/progressions/p1/steps/s9/confirm", map[string]interface{}{
		"responses": []map[string]interface{}{{"question_id": "q1", "answer": "a"}},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body)
	}
}

func TestStartUnknownProgressionReturns404(t *testing.T) {
	r, _ := testRouter(t)
	w := doJSON(t, r, "POST", "/progressions/missing/start", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
