// Package cert decides completion eligibility and issues credentials.
// Issuance is exactly-once per submission: re-evaluating a completed
// submission returns the credential already on record.
package cert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/guidedpath/onboard-lms/internal/grading"
	"github.com/guidedpath/onboard-lms/internal/progression"
)

// Identity is the learner snapshot captured verbatim into the
// credential at issuance.
type Identity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Country    string `json:"country,omitempty"`
	Department string `json:"department,omitempty"`
}

// Outcome is the gate's decision.
type Outcome struct {
	Eligible   bool                    `json:"eligible"`
	Score      float64                 `json:"score"`
	Credential *progression.Credential `json:"credential,omitempty"`
	Reasons    []string                `json:"reasons,omitempty"`
	// Terminal is set when the retry policy leaves no further attempts.
	Terminal bool `json:"terminal,omitempty"`
}

type Gate struct {
	store              progression.Store
	events             progression.EventSink
	defaultValidityDay int
	now                func() time.Time
}

func NewGate(store progression.Store, events progression.EventSink, defaultValidityDays int) *Gate {
	if defaultValidityDays <= 0 {
		defaultValidityDays = 365
	}
	return &Gate{store: store, events: events, defaultValidityDay: defaultValidityDays, now: time.Now}
}

// Evaluate checks completion criteria for the learner's submission and,
// when eligible, finalizes it and issues the credential. Calling it
// again on the same submission returns the same credential.
func (g *Gate) Evaluate(ctx context.Context, submissionID string, learner Identity) (Outcome, error) {
	sub, err := g.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return Outcome{}, err
	}
	p, err := g.store.GetProgression(ctx, sub.ProgressionID)
	if err != nil {
		return Outcome{}, err
	}

	if sub.Status == progression.StatusCompleted {
		return g.replay(ctx, p, sub, learner)
	}

	score := aggregateScore(sub)
	var reasons []string
	if missing := unconfirmedSteps(p, sub); len(missing) > 0 {
		reasons = append(reasons, fmt.Sprintf("unconfirmed steps: %d of %d", len(missing), len(p.Steps)))
	}
	if p.PassingScore != nil && score < *p.PassingScore {
		reasons = append(reasons, fmt.Sprintf("score %d below passing score %d",
			grading.DisplayScore(score), grading.DisplayScore(*p.PassingScore)))
	}

	if len(reasons) > 0 {
		out := Outcome{Eligible: false, Score: score, Reasons: reasons}
		// A failed but fully-confirmed run is finalized so the next
		// start() opens a fresh attempt; an unfinished run stays open.
		if len(unconfirmedSteps(p, sub)) == 0 {
			if _, err := g.store.FinalizeSubmission(ctx, sub.ID, &score, g.now().Unix()); err != nil {
				return Outcome{}, err
			}
			if p.MaxAttempts > 0 && sub.Attempt >= p.MaxAttempts {
				out.Terminal = true
				out.Reasons = append(out.Reasons, "no attempts remaining")
			}
		}
		return out, nil
	}

	if _, err := g.store.FinalizeSubmission(ctx, sub.ID, &score, g.now().Unix()); err != nil {
		return Outcome{}, err
	}
	return g.issue(ctx, p, sub, learner, score)
}

// issue mints the credential and reads back the record that actually
// won the UNIQUE(submission_id) race, so retries observe one credential.
func (g *Gate) issue(ctx context.Context, p progression.Progression, sub progression.Submission, learner Identity, score float64) (Outcome, error) {
	validityDays := p.ValidityDays
	if validityDays <= 0 {
		validityDays = g.defaultValidityDay
	}
	issued := g.now()
	cred := progression.Credential{
		ID:             uuid.NewString(),
		SubmissionID:   sub.ID,
		ProgressionID:  p.ID,
		UserID:         learner.ID,
		UserName:       learner.Name,
		UserCountry:    learner.Country,
		UserDepartment: learner.Department,
		Score:          score,
		IssuedAt:       issued.Unix(),
		ExpiresAt:      issued.AddDate(0, 0, validityDays).Unix(),
	}
	if err := g.store.PutCredential(ctx, cred); err != nil {
		return Outcome{}, err
	}
	stored, err := g.store.CredentialForSubmission(ctx, sub.ID)
	if err != nil {
		return Outcome{}, err
	}
	g.emit(ctx, "CredentialIssued", sub.ID, stored)
	return Outcome{Eligible: true, Score: score, Credential: &stored}, nil
}

// replay handles completed submissions. Same credential if one was
// issued. If none is on record the criteria are re-checked: a passing
// submission may have been finalized and then lost the issuance write
// to a crash or network failure, and a retry must still land on a
// credential rather than a failure report.
func (g *Gate) replay(ctx context.Context, p progression.Progression, sub progression.Submission, learner Identity) (Outcome, error) {
	score := aggregateScore(sub)
	if sub.Score != nil {
		score = *sub.Score
	}
	cred, err := g.store.CredentialForSubmission(ctx, sub.ID)
	if err == nil {
		return Outcome{Eligible: true, Score: score, Credential: &cred}, nil
	}
	if err != progression.ErrNotFound {
		return Outcome{}, err
	}
	passed := p.PassingScore == nil || score >= *p.PassingScore
	if len(unconfirmedSteps(p, sub)) == 0 && passed {
		return g.issue(ctx, p, sub, learner, score)
	}
	out := Outcome{Eligible: false, Score: score, Reasons: []string{"completion criteria not met"}}
	if p.MaxAttempts > 0 && sub.Attempt >= p.MaxAttempts {
		out.Terminal = true
		out.Reasons = append(out.Reasons, "no attempts remaining")
	}
	return out, nil
}

// unconfirmedSteps lists step IDs the learner has not confirmed.
func unconfirmedSteps(p progression.Progression, sub progression.Submission) []string {
	var out []string
	for _, st := range p.Steps {
		if !sub.Confirmed[st.ID] {
			out = append(out, st.ID)
		}
	}
	return out
}

// aggregateScore folds all persisted step feedback into one score at
// full precision.
func aggregateScore(sub progression.Submission) float64 {
	var all []grading.Feedback
	for _, stepFB := range sub.Feedback {
		for _, fb := range stepFB {
			all = append(all, fb)
		}
	}
	return grading.Aggregate(all)
}

func (g *Gate) emit(ctx context.Context, typ, key string, payload interface{}) {
	if g.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = g.events.Append(ctx, typ, key, string(data))
}
