// Package sentiment labels transcript text with a coarse mood.
package sentiment

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Label is one coarse mood classification.
type Label string

const (
	Stressed Label = "stressed"
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// Score holds per-bucket keyword hit counts.
type Score struct {
	Stress   int
	Positive int
	Negative int
}

var (
	positiveWords = wordSet(
		"happy", "good", "great", "amazing", "wonderful", "excellent", "fantastic",
		"love", "excited", "joy", "better", "fine", "okay", "well",
	)
	negativeWords = wordSet(
		"sad", "bad", "terrible", "awful", "hate", "angry", "frustrated",
		"depressed", "anxious", "worried", "upset", "down", "horrible",
	)
	// Tokens are stripped of punctuation before lookup, so "can't" is stored as "cant".
	stressWords = wordSet(
		"stressed", "overwhelmed", "tired", "exhausted", "pressure", "difficult",
		"hard", "struggle", "cant", "unable", "impossible",
	)
)

// Classify returns the label for text. Stress language wins over any
// positive/negative balance.
func Classify(text string) Label {
	return Scores(text).Label()
}

// Label applies bucket precedence to a score.
func (s Score) Label() Label {
	switch {
	case s.Stress > 0:
		return Stressed
	case s.Negative > s.Positive:
		return Negative
	case s.Positive > s.Negative:
		return Positive
	default:
		return Neutral
	}
}

// Scores counts keyword hits per bucket.
func Scores(text string) Score {
	var score Score
	for _, token := range Tokens(text) {
		if _, ok := stressWords[token]; ok {
			score.Stress++
		}
		if _, ok := positiveWords[token]; ok {
			score.Positive++
		}
		if _, ok := negativeWords[token]; ok {
			score.Negative++
		}
	}
	return score
}

// Tokens splits text on whitespace, strips non-word runes, and case-folds.
// Tokens left empty after stripping are dropped.
func Tokens(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	folder := cases.Fold()
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, field)
		if cleaned == "" {
			continue
		}
		tokens = append(tokens, folder.String(cleaned))
	}
	return tokens
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}
