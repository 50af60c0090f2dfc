package metrics

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name     string
		s1       string
		s2       string
		expected int
	}{
		{name: "identical strings", s1: "hello", s2: "hello", expected: 0},
		{name: "one substitution", s1: "hello", s2: "hallo", expected: 1},
		{name: "one insertion", s1: "hello", s2: "helloo", expected: 1},
		{name: "one deletion", s1: "hello", s2: "hell", expected: 1},
		{name: "empty strings", s1: "", s2: "", expected: 0},
		{name: "one empty string", s1: "hello", s2: "", expected: 5},
		{name: "completely different", s1: "abc", s2: "xyz", expected: 3},
		{name: "multibyte runes", s1: "café", s2: "cafe", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Levenshtein(tt.s1, tt.s2)
			if got != tt.expected {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.expected)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		s1       string
		s2       string
		expected float64
	}{
		{name: "identical strings", s1: "hello", s2: "hello", expected: 1.0},
		{name: "completely different", s1: "abc", s2: "xyz", expected: 0.0},
		{name: "one char different", s1: "hello", s2: "hallo", expected: 0.8},
		{name: "empty strings", s1: "", s2: "", expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.s1, tt.s2)
			if !approx(got, tt.expected) {
				t.Errorf("Similarity(%q, %q) = %.3f, want %.3f", tt.s1, tt.s2, got, tt.expected)
			}
		})
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name          string
		original      string
		transcribed   string
		wordAccuracy  float64
		wordErrorRate float64
		correct       int
		substitutions int
		deletions     int
		insertions    int
	}{
		{
			name:         "perfect match ignores case and spacing",
			original:     "Invoice  Number\n123",
			transcribed:  "invoice number 123",
			wordAccuracy: 1.0,
			correct:      3,
		},
		{
			name:          "one substitution",
			original:      "the cat sat",
			transcribed:   "the bat sat",
			wordAccuracy:  0.667,
			wordErrorRate: 0.333,
			correct:       2,
			substitutions: 1,
		},
		{
			name:          "one deletion",
			original:      "total due today",
			transcribed:   "total today",
			wordAccuracy:  0.667,
			wordErrorRate: 0.333,
			correct:       2,
			deletions:     1,
		},
		{
			name:          "one insertion",
			original:      "net amount",
			transcribed:   "net gst amount",
			wordAccuracy:  0.5,
			wordErrorRate: 0.5,
			correct:       2,
			insertions:    1,
		},
		{
			name:          "nothing extracted",
			original:      "abn 51 824 753 556",
			transcribed:   "",
			wordAccuracy:  0.0,
			wordErrorRate: 1.0,
			deletions:     5,
		},
		{
			name:          "text where none expected",
			original:      "",
			transcribed:   "noise",
			wordAccuracy:  0.0,
			wordErrorRate: 1.0,
			insertions:    1,
		},
		{
			name:         "both empty",
			wordAccuracy: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.original, tt.transcribed)
			if !approx(got.WordAccuracy, tt.wordAccuracy) {
				t.Errorf("WordAccuracy = %.3f, want %.3f", got.WordAccuracy, tt.wordAccuracy)
			}
			if !approx(got.WordErrorRate, tt.wordErrorRate) {
				t.Errorf("WordErrorRate = %.3f, want %.3f", got.WordErrorRate, tt.wordErrorRate)
			}
			if got.CorrectWords != tt.correct || got.Substitutions != tt.substitutions ||
				got.Deletions != tt.deletions || got.Insertions != tt.insertions {
				t.Errorf("edits = correct %d, sub %d, del %d, ins %d; want %d, %d, %d, %d",
					got.CorrectWords, got.Substitutions, got.Deletions, got.Insertions,
					tt.correct, tt.substitutions, tt.deletions, tt.insertions)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Tax   Invoice\n\tNo. 7 ", "tax invoice no. 7"},
		{"Cafe\u0301", "caf\u00e9"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := Calculate("Café", "Cafe\u0301"); got.CharacterSimilarity != 1.0 {
		t.Errorf("decomposed accents should match, CharacterSimilarity = %.3f", got.CharacterSimilarity)
	}
}

func TestCalculateSimilarities(t *testing.T) {
	got := Calculate("the cat sat", "the bat sat")
	if !approx(got.CharacterSimilarity, 10.0/11.0) {
		t.Errorf("CharacterSimilarity = %.3f", got.CharacterSimilarity)
	}
	if !approx(got.WordSimilarity, 0.667) {
		t.Errorf("WordSimilarity = %.3f", got.WordSimilarity)
	}
	if got.TotalWordsOriginal != 3 || got.TotalWordsTranscribed != 3 {
		t.Errorf("word totals = %d, %d", got.TotalWordsOriginal, got.TotalWordsTranscribed)
	}
}

func TestAverage(t *testing.T) {
	if got := Average(nil); got != (Result{}) {
		t.Errorf("Average(nil) = %+v", got)
	}

	got := Average([]Result{
		{WordAccuracy: 1.0, WordErrorRate: 0.0, CorrectWords: 4, TotalWordsOriginal: 4},
		{WordAccuracy: 0.5, WordErrorRate: 0.5, CorrectWords: 1, Deletions: 1, TotalWordsOriginal: 2},
	})
	if !approx(got.WordAccuracy, 0.75) || !approx(got.WordErrorRate, 0.25) {
		t.Errorf("Average ratios = %+v", got)
	}
	if got.CorrectWords != 5 || got.Deletions != 1 || got.TotalWordsOriginal != 6 {
		t.Errorf("Average counts = %+v", got)
	}
}
