package progression

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/guidedpath/onboard-lms/internal/grading"
)

// SQLStore persists definitions and submissions over database/sql.
// Steps and per-submission maps live in JSON columns; the step cursor
// is a plain column so ConfirmStep can compare-and-set it in a single
// UPDATE.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutProgression(ctx context.Context, p Progression) error {
	sj, err := json.Marshal(p.Steps)
	if err != nil {
		return err
	}
	var passing sql.NullFloat64
	if p.PassingScore != nil {
		passing = sql.NullFloat64{Float64: *p.PassingScore, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO progressions (id,title,kind,passing_score,max_attempts,time_limit_sec,validity_days,steps_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, kind=EXCLUDED.kind, passing_score=EXCLUDED.passing_score,
			max_attempts=EXCLUDED.max_attempts, time_limit_sec=EXCLUDED.time_limit_sec,
			validity_days=EXCLUDED.validity_days, steps_json=EXCLUDED.steps_json`,
		p.ID, p.Title, p.Kind, passing, p.MaxAttempts, p.TimeLimitSec, p.ValidityDays, string(sj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetProgression(ctx context.Context, id string) (Progression, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,kind,passing_score,max_attempts,time_limit_sec,validity_days,steps_json,created_at
		FROM progressions WHERE id=$1`, id)
	var p Progression
	var passing sql.NullFloat64
	var sj string
	if err := row.Scan(&p.ID, &p.Title, &p.Kind, &passing, &p.MaxAttempts, &p.TimeLimitSec, &p.ValidityDays, &sj, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Progression{}, ErrNotFound
		}
		return Progression{}, err
	}
	if passing.Valid {
		v := passing.Float64
		p.PassingScore = &v
	}
	if err := json.Unmarshal([]byte(sj), &p.Steps); err != nil {
		return Progression{}, err
	}
	return p, nil
}

func (s *SQLStore) CreateSubmission(ctx context.Context, sub Submission) error {
	cj, _ := json.Marshal(sub.Confirmed)
	rj, _ := json.Marshal(sub.Responses)
	fj, _ := json.Marshal(sub.Feedback)
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions (id,progression_id,user_id,attempt,status,step_index,confirmed_json,responses_json,feedback_json,started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sub.ID, sub.ProgressionID, sub.UserID, sub.Attempt, sub.Status, sub.StepIndex,
		string(cj), string(rj), string(fj), sub.StartedAt)
	return err
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,progression_id,user_id,attempt,status,step_index,confirmed_json,responses_json,feedback_json,score,started_at,completed_at
		FROM submissions WHERE id=$1`, id)
	return scanSubmission(row)
}

func (s *SQLStore) LatestSubmission(ctx context.Context, progressionID, userID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,progression_id,user_id,attempt,status,step_index,confirmed_json,responses_json,feedback_json,score,started_at,completed_at
		FROM submissions WHERE progression_id=$1 AND user_id=$2 ORDER BY attempt DESC LIMIT 1`,
		progressionID, userID)
	return scanSubmission(row)
}

func (s *SQLStore) ConfirmStep(ctx context.Context, submissionID string, fromIndex int, upd StepUpdate) (Submission, error) {
	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status != StatusInProgress || sub.StepIndex != fromIndex {
		return Submission{}, ErrInvalidStepTransition
	}
	sub.Confirmed[upd.StepID] = true
	if len(upd.Responses) > 0 {
		sub.Responses[upd.StepID] = upd.Responses
	}
	if len(upd.Feedback) > 0 {
		sub.Feedback[upd.StepID] = upd.Feedback
	}
	cj, _ := json.Marshal(sub.Confirmed)
	rj, _ := json.Marshal(sub.Responses)
	fj, _ := json.Marshal(sub.Feedback)

	// CAS on step_index + status: a racing duplicate finds no row.
	res, err := s.db.ExecContext(ctx, `UPDATE submissions
		SET step_index=$1, status=$2, confirmed_json=$3, responses_json=$4, feedback_json=$5
		WHERE id=$6 AND step_index=$7 AND status=$8`,
		upd.NextIndex, upd.Status, string(cj), string(rj), string(fj),
		submissionID, fromIndex, StatusInProgress)
	if err != nil {
		return Submission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, ErrInvalidStepTransition
	}
	return s.GetSubmission(ctx, submissionID)
}

func (s *SQLStore) SetStepIndex(ctx context.Context, submissionID string, fromIndex, toIndex int) (Submission, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET step_index=$1
		WHERE id=$2 AND step_index=$3 AND status!=$4`,
		toIndex, submissionID, fromIndex, StatusCompleted)
	if err != nil {
		return Submission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, ErrInvalidStepTransition
	}
	return s.GetSubmission(ctx, submissionID)
}

func (s *SQLStore) FinalizeSubmission(ctx context.Context, submissionID string, score *float64, completedAt int64) (Submission, error) {
	var sc sql.NullFloat64
	if score != nil {
		sc = sql.NullFloat64{Float64: *score, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `UPDATE submissions SET status=$1, score=$2, completed_at=$3
		WHERE id=$4 AND status!=$1`,
		StatusCompleted, sc, completedAt, submissionID)
	if err != nil {
		return Submission{}, err
	}
	return s.GetSubmission(ctx, submissionID)
}

func (s *SQLStore) PutCredential(ctx context.Context, c Credential) error {
	// UNIQUE(submission_id) makes issuance exactly-once; a retry after
	// a network failure lands on DO NOTHING.
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials (id,submission_id,progression_id,user_id,user_name,user_country,user_department,score,issued_at,expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (submission_id) DO NOTHING`,
		c.ID, c.SubmissionID, c.ProgressionID, c.UserID, c.UserName, c.UserCountry, c.UserDepartment,
		c.Score, c.IssuedAt, c.ExpiresAt)
	return err
}

func (s *SQLStore) CredentialForSubmission(ctx context.Context, submissionID string) (Credential, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,submission_id,progression_id,user_id,user_name,user_country,user_department,score,issued_at,expires_at
		FROM credentials WHERE submission_id=$1`, submissionID)
	var c Credential
	if err := row.Scan(&c.ID, &c.SubmissionID, &c.ProgressionID, &c.UserID, &c.UserName, &c.UserCountry, &c.UserDepartment, &c.Score, &c.IssuedAt, &c.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	return c, nil
}

func scanSubmission(row *sql.Row) (Submission, error) {
	var sub Submission
	var cj, rj, fj string
	var score sql.NullFloat64
	var completed sql.NullInt64
	if err := row.Scan(&sub.ID, &sub.ProgressionID, &sub.UserID, &sub.Attempt, &sub.Status, &sub.StepIndex,
		&cj, &rj, &fj, &score, &sub.StartedAt, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	// "null" unmarshals without error but leaves a nil map
	if err := json.Unmarshal([]byte(cj), &sub.Confirmed); err != nil || sub.Confirmed == nil {
		sub.Confirmed = map[string]bool{}
	}
	if err := json.Unmarshal([]byte(rj), &sub.Responses); err != nil || sub.Responses == nil {
		sub.Responses = map[string]map[string]interface{}{}
	}
	if err := json.Unmarshal([]byte(fj), &sub.Feedback); err != nil || sub.Feedback == nil {
		sub.Feedback = map[string]map[string]grading.Feedback{}
	}
	if score.Valid {
		v := score.Float64
		sub.Score = &v
	}
	if completed.Valid {
		v := completed.Int64
		sub.CompletedAt = &v
	}
	return sub, nil
}
