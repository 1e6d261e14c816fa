package progression_test

import (
	"context"
	"testing"

	"github.com/guidedpath/onboard-lms/internal/db"
	"github.com/guidedpath/onboard-lms/internal/grading"
	"github.com/guidedpath/onboard-lms/internal/progression"
)

func newSQLiteStore(t *testing.T) *progression.SQLStore {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return progression.NewSQLStore(conn, "sqlite")
}

func seedProgression(t *testing.T, store *progression.SQLStore) progression.Progression {
	t.Helper()
	pass := 80.0
	p := progression.Progression{
		ID:           "p1",
		Title:        "Warehouse Induction",
		Kind:         progression.KindOrientation,
		PassingScore: &pass,
		MaxAttempts:  3,
		ValidityDays: 180,
		Steps: []progression.Step{
			{ID: "s0", Title: "Intro", Order: 0},
			{ID: "s1", Title: "Quiz", Order: 1, Questions: []progression.Question{
				{ID: "q1", Text: "Q", Type: progression.TypeChoice, Options: []string{"a", "b"}, AnswerKey: []string{"a"}, Required: true, Graded: true, Points: 1},
			}},
		},
	}
	if err := store.PutProgression(context.Background(), p); err != nil {
		t.Fatalf("put progression: %v", err)
	}
	return p
}

func seedSubmission(t *testing.T, store *progression.SQLStore, id string, attempt, stepIndex int) {
	t.Helper()
	sub := progression.Submission{
		ID:            id,
		ProgressionID: "p1",
		UserID:        "u1",
		Attempt:       attempt,
		Status:        progression.StatusInProgress,
		StepIndex:     stepIndex,
		Confirmed:     map[string]bool{},
		Responses:     map[string]map[string]interface{}{},
		Feedback:      map[string]map[string]grading.Feedback{},
		StartedAt:     1700000000,
	}
	if err := store.CreateSubmission(context.Background(), sub); err != nil {
		t.Fatalf("create submission: %v", err)
	}
}

func TestSQLStoreProgressionRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	want := seedProgression(t, store)

	got, err := store.GetProgression(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != want.Title || got.Kind != want.Kind || got.MaxAttempts != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.PassingScore == nil || *got.PassingScore != 80 {
		t.Fatalf("passing score lost: %v", got.PassingScore)
	}
	if len(got.Steps) != 2 || len(got.Steps[1].Questions) != 1 {
		t.Fatalf("steps json mangled: %+v", got.Steps)
	}
	if got.Steps[1].Questions[0].AnswerKey[0] != "a" {
		t.Fatal("answer key lost in steps json")
	}
}

func TestSQLStoreUpsertReplacesDefinition(t *testing.T) {
	store := newSQLiteStore(t)
	p := seedProgression(t, store)

	p.Title = "Warehouse Induction v2"
	p.Steps = p.Steps[:1]
	if err := store.PutProgression(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetProgression(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Warehouse Induction v2" || len(got.Steps) != 1 {
		t.Fatalf("upsert did not replace: %+v", got)
	}
}

func TestSQLStoreGetProgressionNotFound(t *testing.T) {
	store := newSQLiteStore(t)
	if _, err := store.GetProgression(context.Background(), "absent"); err != progression.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSQLStoreConfirmStepCompareAndSet(t *testing.T) {
	store := newSQLiteStore(t)
	seedProgression(t, store)
	seedSubmission(t, store, "sub1", 1, 0)
	ctx := context.Background()

	upd := progression.StepUpdate{
		StepID:    "s0",
		NextIndex: 1,
		Status:    progression.StatusInProgress,
		Responses: map[string]interface{}{},
		Feedback:  map[string]grading.Feedback{},
	}
	got, err := store.ConfirmStep(ctx, "sub1", 0, upd)
	if err != nil {
		t.Fatal(err)
	}
	if got.StepIndex != 1 || !got.Confirmed["s0"] {
		t.Fatalf("confirm not applied: %+v", got)
	}

	// a duplicate carrying the stale index finds no matching row
	if _, err := store.ConfirmStep(ctx, "sub1", 0, upd); err != progression.ErrInvalidStepTransition {
		t.Fatalf("stale confirm = %v, want ErrInvalidStepTransition", err)
	}
}

func TestSQLStoreConfirmPersistsResponsesAndFeedback(t *testing.T) {
	store := newSQLiteStore(t)
	seedProgression(t, store)
	seedSubmission(t, store, "sub1", 1, 1)
	ctx := context.Background()

	upd := progression.StepUpdate{
		StepID:    "s1",
		NextIndex: 1,
		Status:    progression.StatusPendingCompletion,
		Responses: map[string]interface{}{"q1": "a"},
		Feedback: map[string]grading.Feedback{
			"q1": {QuestionID: "q1", Correct: true, Graded: true, CorrectAnswer: "a"},
		},
	}
	if _, err := store.ConfirmStep(ctx, "sub1", 1, upd); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetSubmission(ctx, "sub1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != progression.StatusPendingCompletion {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Responses["s1"]["q1"] != "a" {
		t.Fatalf("responses json mangled: %+v", got.Responses)
	}
	if fb := got.Feedback["s1"]["q1"]; !fb.Correct || fb.CorrectAnswer != "a" {
		t.Fatalf("feedback json mangled: %+v", got.Feedback)
	}
}

func TestSQLStoreLatestSubmissionPicksHighestAttempt(t *testing.T) {
	store := newSQLiteStore(t)
	seedProgression(t, store)
	seedSubmission(t, store, "sub1", 1, 0)
	seedSubmission(t, store, "sub2", 2, 0)

	got, err := store.LatestSubmission(context.Background(), "p1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "sub2" || got.Attempt != 2 {
		t.Fatalf("latest = %+v, want sub2", got)
	}
}

func TestSQLStoreCredentialExactlyOnce(t *testing.T) {
	store := newSQLiteStore(t)
	seedProgression(t, store)
	seedSubmission(t, store, "sub1", 1, 0)
	ctx := context.Background()

	first := progression.Credential{
		ID: "c1", SubmissionID: "sub1", ProgressionID: "p1",
		UserID: "u1", UserName: "Alice", Score: 100, IssuedAt: 1, ExpiresAt: 2,
	}
	if err := store.PutCredential(ctx, first); err != nil {
		t.Fatal(err)
	}
	// retry with a different id lands on DO NOTHING
	second := first
	second.ID = "c2"
	if err := store.PutCredential(ctx, second); err != nil {
		t.Fatal(err)
	}
	got, err := store.CredentialForSubmission(ctx, "sub1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "c1" {
		t.Fatalf("credential id = %s, want the first insert to win", got.ID)
	}
}

func TestSQLStoreFinalizeIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	seedProgression(t, store)
	seedSubmission(t, store, "sub1", 1, 1)
	ctx := context.Background()

	score := 90.0
	got, err := store.FinalizeSubmission(ctx, "sub1", &score, 1700000100)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != progression.StatusCompleted || got.Score == nil || *got.Score != 90 {
		t.Fatalf("finalize not applied: %+v", got)
	}

	other := 10.0
	again, err := store.FinalizeSubmission(ctx, "sub1", &other, 1700000200)
	if err != nil {
		t.Fatal(err)
	}
	if *again.Score != 90 || *again.CompletedAt != 1700000100 {
		t.Fatalf("second finalize overwrote the record: %+v", again)
	}
}
