// Package synth generates multiple-choice comprehension questions from
// the plain text of a reference document. The pipeline is heuristic:
// sentence mining first, theme-based backfill when the sentence pool
// runs dry, so a well-formed input always yields the full target count.
package synth

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrTextTooShort = errors.New("text too short")

// Question is a generated quiz item. Heuristic marks theme-backfilled
// questions whose answer is templated rather than drawn from the text.
type Question struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Type      string   `json:"type"` // always "choice"
	Options   []string `json:"options"`
	Answer    string   `json:"answer"`
	Required  bool     `json:"required"`
	Points    float64  `json:"points"`
	Order     int      `json:"order"`
	Heuristic bool     `json:"heuristic,omitempty"`
}

const (
	minNormalizedLen = 100
	maxQuestions     = 30
	optionCount      = 4
	answerPreviewLen = 60
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

var stopwords = map[string]struct{}{
	"which": {}, "where": {}, "there": {}, "their": {},
	"these": {}, "those": {}, "should": {}, "would": {}, "could": {},
}

var fallbackThemes = []string{"key concepts", "main topics", "important principles"}

var genericFillers = []string{
	"A general organizational guideline",
	"A commonly referenced workplace practice",
	"An administrative detail covered elsewhere",
	"A point outside the scope of this document",
}

type Synthesizer struct {
	rnd *rand.Rand
}

// New returns a synthesizer using the given seed; seed 0 means
// time-seeded. Injecting a fixed seed makes option placement
// deterministic for tests.
func New(seed int64) *Synthesizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Synthesizer{rnd: rand.New(rand.NewSource(seed))}
}

// TargetCount maps normalized text length to a question count.
func TargetCount(textLen int) int {
	switch {
	case textLen < 1000:
		return 10
	case textLen < 2000:
		return 15
	case textLen < 3000:
		return 20
	case textLen < 4000:
		return 25
	default:
		return maxQuestions
	}
}

// Synthesize produces exactly `count` questions (or the length-derived
// target when count <= 0). It never returns a partial set: either the
// text is too short, or the full count is met via backfill.
func (s *Synthesizer) Synthesize(text string, count int) ([]Question, error) {
	norm := strings.Join(strings.Fields(text), " ")
	if len(norm) < minNormalizedLen {
		return nil, ErrTextTooShort
	}
	target := count
	if target <= 0 {
		target = TargetCount(len(norm))
	}
	if target > maxQuestions {
		target = maxQuestions
	}

	var out []Question
	for _, sent := range meaningfulSentences(norm) {
		if len(out) >= target {
			break
		}
		out = append(out, s.questionFromSentence(sent))
	}
	if len(out) < target {
		out = append(out, s.backfill(norm, target-len(out))...)
	}
	if len(out) > target {
		out = out[:target]
	}
	for i := range out {
		out[i].Order = i + 1
	}
	return out, nil
}

// meaningfulSentences keeps sentences of [40,300) characters and
// [8,50] words, in original order, each consumed at most once.
func meaningfulSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) < 40 || len(p) >= 300 {
			continue
		}
		wc := len(strings.Fields(p))
		if wc < 8 || wc > 50 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// keyWords returns up to five words longer than four characters, in
// order of appearance.
func keyWords(sentence string) []string {
	var kw []string
	for _, w := range strings.Fields(sentence) {
		w = strings.Trim(w, `.,;:!?()"'`)
		if len(w) > 4 {
			kw = append(kw, w)
			if len(kw) == 5 {
				break
			}
		}
	}
	return kw
}

func (s *Synthesizer) questionFromSentence(sentence string) Question {
	kw := keyWords(sentence)

	var prompt string
	switch {
	case len(sentence) >= 100:
		prompt = fmt.Sprintf("What is the main point about %s?", strings.Join(kw, ", "))
	case len(sentence) >= 60:
		preview := sentence
		if len(preview) > 80 {
			preview = preview[:80]
		}
		prompt = fmt.Sprintf("What does this statement mean: \"%s...\"?", preview)
	default:
		prompt = fmt.Sprintf("What is %s?", strings.ToLower(sentence))
	}

	answer := sentence
	if len(answer) > answerPreviewLen {
		answer = answer[:answerPreviewLen] + "..."
	}

	opts := s.assembleOptions(answer, sentenceDistractors(kw))
	return Question{
		ID:       uuid.NewString(),
		Text:     prompt,
		Type:     "choice",
		Options:  opts,
		Answer:   answer,
		Required: true,
		Points:   1,
	}
}

// sentenceDistractors builds templated wrong answers around the key
// words, keeping only those of plausible length (10,100).
func sentenceDistractors(kw []string) []string {
	var raw []string
	if len(kw) > 0 {
		raw = append(raw, "A key principle related to "+kw[0])
	}
	if len(kw) > 1 {
		raw = append(raw, "An important guideline about "+kw[0]+" and "+kw[1])
	}
	if len(kw) > 0 {
		raw = append(raw, "A standard practice for "+kw[0])
	}
	out := raw[:0]
	for _, d := range raw {
		if len(d) > 10 && len(d) < 100 {
			out = append(out, d)
		}
	}
	return out
}

// assembleOptions pads distractors with generic fillers to three, then
// inserts the correct answer at a uniformly random index, yielding
// exactly four options.
func (s *Synthesizer) assembleOptions(answer string, distractors []string) []string {
	opts := make([]string, 0, optionCount)
	for _, d := range distractors {
		if d != answer && !contains(opts, d) {
			opts = append(opts, d)
		}
		if len(opts) == optionCount-1 {
			break
		}
	}
	for _, f := range genericFillers {
		if len(opts) == optionCount-1 {
			break
		}
		if f != answer && !contains(opts, f) {
			opts = append(opts, f)
		}
	}
	return insertAtRandomIndex(s.rnd, opts, answer)
}

func contains(arr []string, s string) bool {
	for _, v := range arr {
		if v == s {
			return true
		}
	}
	return false
}
