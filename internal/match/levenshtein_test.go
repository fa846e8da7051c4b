package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a        string
		b        string
		expected int
	}{
		{"", "", 0},
		{"a", "a", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"a", "b", 1},
		{"ab", "abc", 1},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"Hello", "hello", 1},

		// Rune-wise, not byte-wise
		{"תעריף 2022", "תעריף 2023", 1},
		{"é", "e", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, Levenshtein(tt.a, tt.b))
			assert.Equal(t, tt.expected, Levenshtein(tt.b, tt.a), "symmetry")
		})
	}
}

func TestLevenshteinNormalized(t *testing.T) {
	assert.InDelta(t, 1.0, LevenshteinNormalized("", ""), 0.001)
	assert.InDelta(t, 0.0, LevenshteinNormalized("abc", "xyz"), 0.001)
	assert.InDelta(t, 1.0-3.0/7.0, LevenshteinNormalized("kitten", "sitting"), 0.001)
	assert.InDelta(t, 0.9, LevenshteinNormalized("תעריף 2022", "תעריף 2023"), 0.001)
}

func TestScores(t *testing.T) {
	assert.InDelta(t, 1.0, LabelScore(" HIGH ", "high"), 0.001)
	assert.InDelta(t, 1.0, IdentScore("pipedrive:GetDeal", "get_deal"), 0.001)
	assert.Less(t, IdentScore("GetDeal", "UploadFile"), 0.5)
}

func BenchmarkLevenshtein(b *testing.B) {
	for b.Loop() {
		Levenshtein("algorithm", "altruistic")
	}
}
