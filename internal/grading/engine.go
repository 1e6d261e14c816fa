// Package grading validates submitted answers against stored answer
// keys. A Validator routes each question to a strategy by type; scoring
// over the graded subset is left to Aggregate so surveys with no graded
// questions stay well-defined.
package grading

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Q is the minimal view of a question needed for validation.
type Q struct {
	ID        string
	Type      string // choice, checkbox, text, rating, yesno
	AnswerKey []string
	Required  bool
	Graded    bool
	MatchMode string // exact|contains, for graded text
	Points    float64
}

// Feedback is the per-question outcome persisted into the submission.
type Feedback struct {
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	Graded        bool   `json:"graded"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// Strategy validates a single question response.
type Strategy interface {
	Check(ctx context.Context, q Q, response interface{}) (bool, error)
}

type Validator interface {
	Validate(ctx context.Context, questions []Q, responses map[string]interface{}) ([]Feedback, error)
}

type defaultValidator struct {
	strategies map[string]Strategy
}

// Option mirrors the engine's construction knobs.
type Option func(*config)

type config struct {
	MaxEditDistance int // fuzzy tolerance for graded text answers
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// NewValidator installs built-in strategies.
func NewValidator(opts ...Option) Validator {
	cfg := &config{MaxEditDistance: 0}
	for _, o := range opts {
		o(cfg)
	}
	text := textStrategy{maxEdit: cfg.MaxEditDistance}
	return &defaultValidator{
		strategies: map[string]Strategy{
			"choice":   exactStrategy{},
			"yesno":    exactStrategy{},
			"checkbox": setStrategy{},
			"text":     text,
			"rating":   text,
		},
	}
}

func (v *defaultValidator) Validate(ctx context.Context, questions []Q, responses map[string]interface{}) ([]Feedback, error) {
	out := make([]Feedback, 0, len(questions))
	for _, q := range questions {
		fb := Feedback{QuestionID: q.ID, Graded: isGraded(q)}
		if fb.Graded && len(q.AnswerKey) > 0 {
			fb.CorrectAnswer = q.AnswerKey[0]
		}
		resp, has := responses[q.ID]
		if has {
			s, ok := v.strategies[q.Type]
			if !ok {
				return nil, errors.New("no strategy for question type " + q.Type)
			}
			correct, err := s.Check(ctx, q, resp)
			if err != nil {
				return nil, err
			}
			fb.Correct = correct
		}
		out = append(out, fb)
	}
	return out, nil
}

// isGraded: choice-like types always grade; text and rating only when
// the authoring side marked them graded.
func isGraded(q Q) bool {
	switch q.Type {
	case "text", "rating":
		return q.Graded
	default:
		return true
	}
}

// Aggregate returns (correct graded / graded) x 100 at full precision.
// With no graded questions there is nothing to fail: 100.
func Aggregate(fbs []Feedback) float64 {
	graded, correct := 0, 0
	for _, fb := range fbs {
		if !fb.Graded {
			continue
		}
		graded++
		if fb.Correct {
			correct++
		}
	}
	if graded == 0 {
		return 100
	}
	return float64(correct) / float64(graded) * 100
}

// DisplayScore rounds for presentation; comparisons use the full
// precision value from Aggregate.
func DisplayScore(score float64) int { return int(math.Round(score)) }

// --- Strategies ---

type exactStrategy struct{}

func (exactStrategy) Check(_ context.Context, q Q, response interface{}) (bool, error) {
	resp, ok := response.(string)
	if !ok {
		return false, errors.New("response must be string")
	}
	for _, k := range q.AnswerKey {
		if resp == k {
			return true, nil
		}
	}
	return false, nil
}

type setStrategy struct{}

func (setStrategy) Check(_ context.Context, q Q, response interface{}) (bool, error) {
	respSlice, ok := toStringSlice(response)
	if !ok {
		return false, errors.New("response must be []string")
	}
	return setEqual(toSet(q.AnswerKey), toSet(respSlice)), nil
}

// textStrategy covers free-text and rating responses. Ungraded: any
// non-empty answer passes. Graded: exact or contains match against the
// key after normalization, with optional edit-distance slack.
type textStrategy struct{ maxEdit int }

func (s textStrategy) Check(_ context.Context, q Q, response interface{}) (bool, error) {
	var resp string
	switch t := response.(type) {
	case string:
		resp = t
	case float64:
		// rating widgets submit JSON numbers; grade them by their
		// string form so a keyed rating can still be correct
		resp = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return false, errors.New("response must be string or number")
	}
	if !q.Graded {
		return strings.TrimSpace(resp) != "", nil
	}
	normResp := normalize(resp)
	for _, k := range q.AnswerKey {
		nk := normalize(k)
		switch q.MatchMode {
		case "contains":
			if strings.Contains(normResp, nk) {
				return true, nil
			}
		default:
			if nk == normResp {
				return true, nil
			}
			if s.maxEdit > 0 && levenshtein(nk, normResp) <= s.maxEdit {
				return true, nil
			}
		}
	}
	return false, nil
}

// helpers

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
