// Package metrics scores extracted text against a ground truth transcript.
package metrics

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Result holds character and word level accuracy for one transcript.
type Result struct {
	CharacterSimilarity   float64 `yaml:"character_similarity" json:"character_similarity"`
	WordSimilarity        float64 `yaml:"word_similarity" json:"word_similarity"`
	WordAccuracy          float64 `yaml:"word_accuracy" json:"word_accuracy"`
	WordErrorRate         float64 `yaml:"word_error_rate" json:"word_error_rate"`
	TotalWordsOriginal    int     `yaml:"total_words_original" json:"total_words_original"`
	TotalWordsTranscribed int     `yaml:"total_words_transcribed" json:"total_words_transcribed"`
	CorrectWords          int     `yaml:"correct_words" json:"correct_words"`
	Substitutions         int     `yaml:"substitutions" json:"substitutions"`
	Deletions             int     `yaml:"deletions" json:"deletions"`
	Insertions            int     `yaml:"insertions" json:"insertions"`
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize composes text to NFC, lowercases it and collapses whitespace
// runs to one space.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = whitespace.ReplaceAllString(strings.TrimSpace(text), " ")
	return strings.ToLower(text)
}

// Levenshtein is the edit distance between s1 and s2 counted in runes.
func Levenshtein(s1, s2 string) int {
	return editDistance([]rune(s1), []rune(s2))
}

func editDistance[T comparable](a, b []T) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Similarity is 1 minus the edit distance over the longer string's length.
// Two empty strings are identical.
func Similarity(s1, s2 string) float64 {
	r1, r2 := []rune(s1), []rune(s2)
	maxLen := max(len(r1), len(r2))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(editDistance(r1, r2))/float64(maxLen)
}

// alignWords aligns trans against orig and counts each kind of edit.
func alignWords(orig, trans []string) (correct, substitutions, deletions, insertions int) {
	m, n := len(orig), len(trans)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if orig[i-1] == trans[j-1] {
				dp[i][j] = dp[i-1][j-1]
			} else {
				dp[i][j] = 1 + min(dp[i-1][j], dp[i][j-1], dp[i-1][j-1])
			}
		}
	}

	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && orig[i-1] == trans[j-1]:
			correct++
			i--
			j--
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+1:
			substitutions++
			i--
			j--
		case i > 0 && dp[i][j] == dp[i-1][j]+1:
			deletions++
			i--
		default:
			insertions++
			j--
		}
	}
	return correct, substitutions, deletions, insertions
}

// Calculate compares transcribed against original after normalizing both.
// WordErrorRate is the number of word edits over the original word count
// and can exceed 1 when many words were inserted.
func Calculate(original, transcribed string) Result {
	origNorm := Normalize(original)
	transNorm := Normalize(transcribed)
	origWords := strings.Fields(origNorm)
	transWords := strings.Fields(transNorm)

	correct, subs, dels, ins := alignWords(origWords, transWords)
	wer := 0.0
	if len(origWords) > 0 {
		wer = float64(subs+dels+ins) / float64(len(origWords))
	} else if len(transWords) > 0 {
		wer = 1.0
	}

	return Result{
		CharacterSimilarity:   Similarity(origNorm, transNorm),
		WordSimilarity:        1.0 - wordDistanceRatio(origWords, transWords),
		WordAccuracy:          1.0 - wer,
		WordErrorRate:         wer,
		TotalWordsOriginal:    len(origWords),
		TotalWordsTranscribed: len(transWords),
		CorrectWords:          correct,
		Substitutions:         subs,
		Deletions:             dels,
		Insertions:            ins,
	}
}

func wordDistanceRatio(orig, trans []string) float64 {
	maxLen := max(len(orig), len(trans))
	if maxLen == 0 {
		return 0
	}
	return float64(editDistance(orig, trans)) / float64(maxLen)
}

// Average is the mean of the ratio fields and the sum of the counts.
func Average(results []Result) Result {
	var avg Result
	if len(results) == 0 {
		return avg
	}
	for _, r := range results {
		avg.CharacterSimilarity += r.CharacterSimilarity
		avg.WordSimilarity += r.WordSimilarity
		avg.WordAccuracy += r.WordAccuracy
		avg.WordErrorRate += r.WordErrorRate
		avg.TotalWordsOriginal += r.TotalWordsOriginal
		avg.TotalWordsTranscribed += r.TotalWordsTranscribed
		avg.CorrectWords += r.CorrectWords
		avg.Substitutions += r.Substitutions
		avg.Deletions += r.Deletions
		avg.Insertions += r.Insertions
	}
	n := float64(len(results))
	avg.CharacterSimilarity /= n
	avg.WordSimilarity /= n
	avg.WordAccuracy /= n
	avg.WordErrorRate /= n
	return avg
}
