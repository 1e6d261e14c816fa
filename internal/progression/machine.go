package progression

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/guidedpath/onboard-lms/internal/grading"
)

// EventSink receives audit events. Wired to the event log in the
// gateway; nil disables auditing.
type EventSink interface {
	Append(ctx context.Context, typ, key, dataJSON string) error
}

// Machine owns every step-index and percentage computation for the
// engine. Handlers render what it returns and never do index math.
type Machine struct {
	store     Store
	validator grading.Validator
	events    EventSink
	now       func() time.Time
}

func NewMachine(store Store, validator grading.Validator, events EventSink) *Machine {
	return &Machine{store: store, validator: validator, events: events, now: time.Now}
}

// Summary is the learner-facing view of a submission's position.
type Summary struct {
	Submission  Submission `json:"submission"`
	TotalSteps  int        `json:"total_steps"`
	PercentDone int        `json:"percent_done"`
	CurrentStep *Step      `json:"current_step,omitempty"`
}

// ConfirmResult is returned by Confirm.
type ConfirmResult struct {
	Advanced   bool               `json:"advanced"`
	Validation []grading.Feedback `json:"answer_validation"`
	NextStepID string             `json:"next_step_id,omitempty"`
	Summary    Summary            `json:"summary"`
}

// Start creates a submission at the first actionable step, or resumes
// the existing one. On a completed submission it opens the next attempt
// if the retry policy allows, else ErrAttemptsExhausted.
func (m *Machine) Start(ctx context.Context, progressionID, userID string) (Summary, error) {
	p, err := m.store.GetProgression(ctx, progressionID)
	if err != nil {
		return Summary{}, err
	}

	last, err := m.store.LatestSubmission(ctx, progressionID, userID)
	switch {
	case err == nil && last.Status != StatusCompleted:
		return m.summarize(p, last), nil // idempotent resume
	case err == nil: // completed: retry policy decides
		if p.MaxAttempts > 0 && last.Attempt >= p.MaxAttempts {
			return Summary{}, ErrAttemptsExhausted
		}
		return m.create(ctx, p, userID, last.Attempt+1)
	case err == ErrNotFound:
		return m.create(ctx, p, userID, 1)
	default:
		return Summary{}, err
	}
}

func (m *Machine) create(ctx context.Context, p Progression, userID string, attempt int) (Summary, error) {
	sub := Submission{
		ID:            uuid.NewString(),
		ProgressionID: p.ID,
		UserID:        userID,
		Attempt:       attempt,
		Status:        StatusInProgress,
		StepIndex:     0,
		Confirmed:     map[string]bool{},
		Responses:     map[string]map[string]interface{}{},
		Feedback:      map[string]map[string]grading.Feedback{},
		StartedAt:     m.now().Unix(),
	}
	// A leading checklist step with no questions is confirmed on view.
	if len(p.Steps) > 1 && !p.Steps[0].HasQuestions() {
		sub.Confirmed[p.Steps[0].ID] = true
		sub.StepIndex = 1
	}
	if err := m.store.CreateSubmission(ctx, sub); err != nil {
		return Summary{}, err
	}
	m.emit(ctx, "SubmissionStarted", sub.ID, `{"progression_id":"`+p.ID+`","attempt":`+strconv.Itoa(attempt)+`}`)
	return m.summarize(p, sub), nil
}

// Confirm validates responses for the current step and advances. Only
// the current step may be confirmed; anything else is rejected before
// any mutation. The store applies the update with a compare-and-set on
// the step index, so a duplicate in-flight confirm loses cleanly.
func (m *Machine) Confirm(ctx context.Context, submissionID, stepID string, responses map[string]interface{}) (ConfirmResult, error) {
	sub, err := m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if sub.Status != StatusInProgress {
		return ConfirmResult{}, ErrInvalidStepTransition
	}
	p, err := m.store.GetProgression(ctx, sub.ProgressionID)
	if err != nil {
		return ConfirmResult{}, err
	}
	idx := clampIndex(sub.StepIndex, len(p.Steps))
	if len(p.Steps) == 0 || p.Steps[idx].ID != stepID {
		return ConfirmResult{}, ErrInvalidStepTransition
	}
	step := p.Steps[idx]

	if missing := missingRequired(step, responses); len(missing) > 0 {
		return ConfirmResult{}, &MissingAnswersError{QuestionIDs: missing}
	}

	fbs, err := m.validator.Validate(ctx, gradingView(step), responses)
	if err != nil {
		return ConfirmResult{}, err
	}
	fbMap := make(map[string]grading.Feedback, len(fbs))
	for _, fb := range fbs {
		fbMap[fb.QuestionID] = fb
	}

	upd := StepUpdate{
		StepID:    stepID,
		Responses: responses,
		Feedback:  fbMap,
	}
	last := idx == len(p.Steps)-1
	if last {
		// completion is the certification gate's call, not ours
		upd.NextIndex = idx
		upd.Status = StatusPendingCompletion
	} else {
		upd.NextIndex = idx + 1
		upd.Status = StatusInProgress
	}

	updated, err := m.store.ConfirmStep(ctx, submissionID, idx, upd)
	if err != nil {
		return ConfirmResult{}, err
	}
	m.emit(ctx, "StepConfirmed", submissionID, `{"step_id":"`+stepID+`"}`)

	res := ConfirmResult{
		Advanced:   true,
		Validation: fbs,
		Summary:    m.summarize(p, updated),
	}
	if !last {
		res.NextStepID = p.Steps[upd.NextIndex].ID
	}
	return res, nil
}

// Retreat moves the cursor back one step. Confirmed status and stored
// answers survive, so revisiting costs nothing.
func (m *Machine) Retreat(ctx context.Context, submissionID string) (Summary, error) {
	sub, err := m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Summary{}, err
	}
	if sub.Status == StatusCompleted {
		return Summary{}, ErrAlreadyCompleted
	}
	p, err := m.store.GetProgression(ctx, sub.ProgressionID)
	if err != nil {
		return Summary{}, err
	}
	idx := clampIndex(sub.StepIndex, len(p.Steps))
	if idx == 0 {
		return m.summarize(p, sub), nil
	}
	updated, err := m.store.SetStepIndex(ctx, submissionID, sub.StepIndex, idx-1)
	if err != nil {
		return Summary{}, err
	}
	return m.summarize(p, updated), nil
}

// Get returns the current summary without mutating anything.
func (m *Machine) Get(ctx context.Context, submissionID string) (Summary, error) {
	sub, err := m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Summary{}, err
	}
	p, err := m.store.GetProgression(ctx, sub.ProgressionID)
	if err != nil {
		return Summary{}, err
	}
	return m.summarize(p, sub), nil
}

func (m *Machine) summarize(p Progression, sub Submission) Summary {
	sub.StepIndex = clampIndex(sub.StepIndex, len(p.Steps))
	s := Summary{
		Submission:  sub,
		TotalSteps:  len(p.Steps),
		PercentDone: percentDone(len(sub.Confirmed), len(p.Steps)),
	}
	if len(p.Steps) > 0 {
		st := p.Steps[sub.StepIndex]
		// answer keys never leave the engine
		public := st
		public.Questions = make([]Question, len(st.Questions))
		for i, q := range st.Questions {
			q.AnswerKey = nil
			public.Questions[i] = q
		}
		s.CurrentStep = &public
	}
	return s
}

// clampIndex guards against external state implying an out-of-range
// cursor (e.g. a progression redefined to fewer steps).
func clampIndex(idx, steps int) int {
	if steps == 0 || idx < 0 {
		return 0
	}
	if idx > steps-1 {
		return steps - 1
	}
	return idx
}

// percentDone never exceeds 100, including the zero-step case.
func percentDone(confirmed, steps int) int {
	if steps == 0 {
		return 0
	}
	pct := confirmed * 100 / steps
	if pct > 100 {
		return 100
	}
	return pct
}

func missingRequired(step Step, responses map[string]interface{}) []string {
	var missing []string
	for _, q := range step.Questions {
		if !q.Required {
			continue
		}
		v, ok := responses[q.ID]
		if !ok || isEmptyAnswer(v) {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

func isEmptyAnswer(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

func gradingView(step Step) []grading.Q {
	out := make([]grading.Q, 0, len(step.Questions))
	for _, q := range step.Questions {
		out = append(out, grading.Q{
			ID:        q.ID,
			Type:      q.Type,
			AnswerKey: q.AnswerKey,
			Required:  q.Required,
			Graded:    q.Graded,
			MatchMode: q.MatchMode,
			Points:    q.Points,
		})
	}
	return out
}

func (m *Machine) emit(ctx context.Context, typ, key, data string) {
	if m.events == nil {
		return
	}
	_ = m.events.Append(ctx, typ, key, data)
}
