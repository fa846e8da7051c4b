package match

import (
	"cmp"
	"slices"
)

// DefaultThreshold is the minimum similarity for a suggestion.
const DefaultThreshold = 0.5

// Candidate is a scored near match.
type Candidate struct {
	Value string
	Score float64
}

// ScoreFunc scores the similarity of two strings in [0, 1].
type ScoreFunc func(a, b string) float64

// Rank scores every candidate against want and returns those at or above
// threshold, best first. Ties keep the candidates' original order.
func Rank(want string, candidates []string, score ScoreFunc, threshold float64) []Candidate {
	var ranked []Candidate

	for _, c := range candidates {
		s := score(want, c)
		if s >= threshold {
			ranked = append(ranked, Candidate{Value: c, Score: s})
		}
	}

	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return ranked
}

// Closest returns up to n option labels most similar to label.
func Closest(label string, options []string, n int) []string {
	ranked := Rank(label, options, LabelScore, DefaultThreshold)
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]string, len(ranked))
	for i, c := range ranked {
		out[i] = c.Value
	}

	return out
}

// Exact returns the index of the option equal to label after normalization,
// or -1.
func Exact(label string, options []string) int {
	want := NormalizeLabel(label)

	return slices.IndexFunc(options, func(o string) bool {
		return NormalizeLabel(o) == want
	})
}
