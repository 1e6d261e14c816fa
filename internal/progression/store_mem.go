package progression

import (
	"context"
	"sync"

	"github.com/guidedpath/onboard-lms/internal/grading"
)

// memoryStore backs dev mode and tests. The mutex makes ConfirmStep's
// compare-and-set atomic, which is what keeps a double-click from
// corrupting the step cursor.
type memoryStore struct {
	mu           sync.RWMutex
	progressions map[string]Progression
	submissions  map[string]Submission
	credentials  map[string]Credential // key: submissionID
}

func NewInMemoryStore() Store {
	return &memoryStore{
		progressions: map[string]Progression{},
		submissions:  map[string]Submission{},
		credentials:  map[string]Credential{},
	}
}

func (m *memoryStore) PutProgression(_ context.Context, p Progression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressions[p.ID] = p
	return nil
}

func (m *memoryStore) GetProgression(_ context.Context, id string) (Progression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progressions[id]
	if !ok {
		return Progression{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) CreateSubmission(_ context.Context, sub Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[sub.ID] = cloneSubmission(sub)
	return nil
}

func (m *memoryStore) GetSubmission(_ context.Context, id string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return cloneSubmission(sub), nil
}

func (m *memoryStore) LatestSubmission(_ context.Context, progressionID, userID string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best Submission
	found := false
	for _, sub := range m.submissions {
		if sub.ProgressionID != progressionID || sub.UserID != userID {
			continue
		}
		if !found || sub.Attempt > best.Attempt {
			best = sub
			found = true
		}
	}
	if !found {
		return Submission{}, ErrNotFound
	}
	return cloneSubmission(best), nil
}

func (m *memoryStore) ConfirmStep(_ context.Context, submissionID string, fromIndex int, upd StepUpdate) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[submissionID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if sub.Status != StatusInProgress || sub.StepIndex != fromIndex {
		return Submission{}, ErrInvalidStepTransition
	}
	sub = cloneSubmission(sub)
	sub.Confirmed[upd.StepID] = true
	if len(upd.Responses) > 0 {
		sub.Responses[upd.StepID] = upd.Responses
	}
	if len(upd.Feedback) > 0 {
		sub.Feedback[upd.StepID] = upd.Feedback
	}
	sub.StepIndex = upd.NextIndex
	sub.Status = upd.Status
	m.submissions[submissionID] = sub
	return cloneSubmission(sub), nil
}

func (m *memoryStore) SetStepIndex(_ context.Context, submissionID string, fromIndex, toIndex int) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[submissionID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if sub.Status == StatusCompleted || sub.StepIndex != fromIndex {
		return Submission{}, ErrInvalidStepTransition
	}
	sub.StepIndex = toIndex
	m.submissions[submissionID] = sub
	return cloneSubmission(sub), nil
}

func (m *memoryStore) FinalizeSubmission(_ context.Context, submissionID string, score *float64, completedAt int64) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[submissionID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if sub.Status == StatusCompleted {
		return cloneSubmission(sub), nil
	}
	sub.Status = StatusCompleted
	sub.Score = score
	sub.CompletedAt = &completedAt
	m.submissions[submissionID] = sub
	return cloneSubmission(sub), nil
}

func (m *memoryStore) PutCredential(_ context.Context, c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.credentials[c.SubmissionID]; exists {
		return nil // exactly-once per submission
	}
	m.credentials[c.SubmissionID] = c
	return nil
}

func (m *memoryStore) CredentialForSubmission(_ context.Context, submissionID string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.credentials[submissionID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

func cloneSubmission(sub Submission) Submission {
	out := sub
	out.Confirmed = make(map[string]bool, len(sub.Confirmed))
	for k, v := range sub.Confirmed {
		out.Confirmed[k] = v
	}
	out.Responses = make(map[string]map[string]interface{}, len(sub.Responses))
	for k, v := range sub.Responses {
		inner := make(map[string]interface{}, len(v))
		for qk, qv := range v {
			inner[qk] = qv
		}
		out.Responses[k] = inner
	}
	out.Feedback = make(map[string]map[string]grading.Feedback, len(sub.Feedback))
	for k, v := range sub.Feedback {
		inner := make(map[string]grading.Feedback, len(v))
		for qk, qv := range v {
			inner[qk] = qv
		}
		out.Feedback[k] = inner
	}
	return out
}
