package sentiment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Label
	}{
		{name: "stress dominates positive", text: "I am so stressed and happy", want: Stressed},
		{name: "positive", text: "great wonderful", want: Positive},
		{name: "negative", text: "bad terrible", want: Negative},
		{name: "empty", text: "", want: Neutral},
		{name: "whitespace only", text: " \n\t ", want: Neutral},
		{name: "negative bucket only", text: "I feel anxious and worried", want: Negative},
		{name: "tie is neutral", text: "good but sad", want: Neutral},
		{name: "punctuation stripped", text: "Happy!!! (great)", want: Positive},
		{name: "case folded", text: "EXHAUSTED today", want: Stressed},
		{name: "contraction matches stress", text: "I can't sleep", want: Stressed},
		{name: "no keywords", text: "the weather is cloudy", want: Neutral},
		{name: "stress beats heavy negative", text: "sad bad awful but tired", want: Stressed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.text))
		})
	}
}

func TestScoresCountsEveryHit(t *testing.T) {
	score := Scores("good good, bad. overwhelmed")
	require.Equal(t, Score{Stress: 1, Positive: 2, Negative: 1}, score)
}

func TestTokens(t *testing.T) {
	require.Equal(t, []string{"hello", "world", "cant"}, Tokens("  Hello, WORLD... can't --- "))
	require.Nil(t, Tokens(""))
}

func TestBucketsAreDisjoint(t *testing.T) {
	for word := range stressWords {
		_, pos := positiveWords[word]
		_, neg := negativeWords[word]
		require.False(t, pos || neg, word)
	}
	for word := range positiveWords {
		_, neg := negativeWords[word]
		require.False(t, neg, word)
	}
}
