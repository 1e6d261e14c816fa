package progression

import "github.com/guidedpath/onboard-lms/internal/grading"

// Question types.
const (
	TypeChoice   = "choice"
	TypeCheckbox = "checkbox"
	TypeText     = "text"
	TypeRating   = "rating"
	TypeYesNo    = "yesno"
)

// Progression kinds. All share the same engine; kind is descriptive.
const (
	KindOrientation = "orientation"
	KindCourse      = "course"
	KindSurvey      = "survey"
)

// Submission statuses.
const (
	StatusInProgress        = "in_progress"
	StatusPendingCompletion = "pending_completion"
	StatusCompleted         = "completed"
)

type Question struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Type      string   `json:"type"`
	Options   []string `json:"options,omitempty"` // empty for text/rating
	AnswerKey []string `json:"answer_key,omitempty"`
	Required  bool     `json:"required"`
	Graded    bool     `json:"graded"`
	MatchMode string   `json:"match_mode,omitempty"` // exact|contains, graded text only
	Points    float64  `json:"points"`
	Order     int      `json:"order"`
	Heuristic bool     `json:"heuristic,omitempty"`
}

type Step struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Order      int        `json:"order"` // contiguous from 0 within a progression
	DocumentID string     `json:"document_id,omitempty"`
	Questions  []Question `json:"questions,omitempty"`
}

// HasQuestions reports whether the step carries any questions; a step
// without them is confirmable on view.
func (s Step) HasQuestions() bool { return len(s.Questions) > 0 }

type Progression struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Kind         string   `json:"kind"`
	PassingScore *float64 `json:"passing_score,omitempty"` // nil: completion-only
	MaxAttempts  int      `json:"max_attempts"`
	TimeLimitSec int      `json:"time_limit_sec"`
	ValidityDays int      `json:"validity_days"`
	Steps        []Step   `json:"steps"`
	CreatedAt    int64    `json:"created_at,omitempty"`
}

// Submission is one learner's attempt at a progression. Responses and
// Feedback are keyed step ID -> question ID.
type Submission struct {
	ID            string                                `json:"id"`
	ProgressionID string                                `json:"progression_id"`
	UserID        string                                `json:"user_id"`
	Attempt       int                                   `json:"attempt"`
	Status        string                                `json:"status"`
	StepIndex     int                                   `json:"step_index"`
	Confirmed     map[string]bool                       `json:"confirmed"`
	Responses     map[string]map[string]interface{}     `json:"responses"`
	Feedback      map[string]map[string]grading.Feedback `json:"feedback"`
	Score         *float64                              `json:"score,omitempty"`
	StartedAt     int64                                 `json:"started_at"`
	CompletedAt   *int64                                `json:"completed_at,omitempty"`
}

// Credential is the immutable completion record. Learner fields are a
// snapshot taken at issuance; later profile edits do not alter it.
type Credential struct {
	ID             string  `json:"id"`
	SubmissionID   string  `json:"submission_id"`
	ProgressionID  string  `json:"progression_id"`
	UserID         string  `json:"user_id"`
	UserName       string  `json:"user_name"`
	UserCountry    string  `json:"user_country,omitempty"`
	UserDepartment string  `json:"user_department,omitempty"`
	Score          float64 `json:"score"`
	IssuedAt       int64   `json:"issued_at"`
	ExpiresAt      int64   `json:"expires_at"`
}

// Public returns a learner-safe copy with answer keys stripped.
func (p Progression) Public() Progression {
	out := p
	out.Steps = make([]Step, len(p.Steps))
	for i, st := range p.Steps {
		cs := st
		cs.Questions = make([]Question, len(st.Questions))
		for j, q := range st.Questions {
			q.AnswerKey = nil
			cs.Questions[j] = q
		}
		out.Steps[i] = cs
	}
	return out
}
