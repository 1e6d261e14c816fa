package progression

import (
	"context"

	"github.com/guidedpath/onboard-lms/internal/grading"
)

// StepUpdate is the state written by a successful confirm. NextIndex
// and Status are computed by the state machine; stores only persist
// them when the compare-and-set condition holds.
type StepUpdate struct {
	StepID    string
	NextIndex int
	Status    string
	Responses map[string]interface{}
	Feedback  map[string]grading.Feedback
}

type Store interface {
	PutProgression(ctx context.Context, p Progression) error
	// GetProgression returns the full definition including answer keys.
	GetProgression(ctx context.Context, id string) (Progression, error)

	CreateSubmission(ctx context.Context, sub Submission) error
	GetSubmission(ctx context.Context, id string) (Submission, error)
	// LatestSubmission returns the highest-attempt submission for the
	// learner, or ErrNotFound.
	LatestSubmission(ctx context.Context, progressionID, userID string) (Submission, error)

	// ConfirmStep applies upd iff the stored step index still equals
	// fromIndex and the submission is in progress. A failed condition
	// returns ErrInvalidStepTransition without mutating anything.
	ConfirmStep(ctx context.Context, submissionID string, fromIndex int, upd StepUpdate) (Submission, error)

	// SetStepIndex moves the cursor (retreat/revisit) iff the stored
	// index equals fromIndex. Confirmations and answers are untouched.
	SetStepIndex(ctx context.Context, submissionID string, fromIndex, toIndex int) (Submission, error)

	// FinalizeSubmission marks the submission completed with its score
	// snapshot. Completed submissions are immutable afterwards.
	FinalizeSubmission(ctx context.Context, submissionID string, score *float64, completedAt int64) (Submission, error)

	PutCredential(ctx context.Context, c Credential) error
	// CredentialForSubmission returns the issued credential, or
	// ErrNotFound if none exists yet.
	CredentialForSubmission(ctx context.Context, submissionID string) (Credential, error)
}
