package synth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// mineThemes returns the ten highest-frequency words longer than five
// characters, stopwords excluded. Ties break toward first appearance so
// output is stable for a given text.
func mineThemes(text string) []string {
	counts := map[string]int{}
	first := map[string]int{}
	for i, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, `.,;:!?()"'`)
		if len(w) <= 5 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, seen := counts[w]; !seen {
			first[w] = i
		}
		counts[w]++
	}
	themes := make([]string, 0, len(counts))
	for w := range counts {
		themes = append(themes, w)
	}
	sort.Slice(themes, func(i, j int) bool {
		a, b := themes[i], themes[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return first[a] < first[b]
	})
	if len(themes) > 10 {
		themes = themes[:10]
	}
	return themes
}

// backfill produces n theme-based generic questions, cycling through
// the mined themes. Their correct answers are templated, not drawn from
// the text, so they are tagged Heuristic.
func (s *Synthesizer) backfill(text string, n int) []Question {
	themes := mineThemes(text)
	if len(themes) == 0 {
		themes = fallbackThemes
	}
	out := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		theme := themes[i%len(themes)]
		answer := "A principle that ensures effective implementation of " + theme
		distractors := []string{
			"A deprecated approach to " + theme,
			"An optional consideration regarding " + theme,
			"A topic unrelated to " + theme,
		}
		out = append(out, Question{
			ID:        uuid.NewString(),
			Text:      fmt.Sprintf("Which of the following best describes %s?", theme),
			Type:      "choice",
			Options:   s.assembleOptions(answer, distractors),
			Answer:    answer,
			Required:  true,
			Points:    1,
			Heuristic: true,
		})
	}
	return out
}
