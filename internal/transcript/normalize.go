// Package transcript normalizes recognized speech before it reaches callers.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options controls transcript formatting.
type Options struct {
	CapitalizeSentences bool
	TrailingSpace       bool
}

// Normalize collapses whitespace and applies the configured casing rules.
func Normalize(text string, opts Options) string {
	return Assemble([]string{text}, opts)
}

// Assemble joins recognized segments and normalizes the result.
func Assemble(segments []string, opts Options) string {
	normalized := strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentenceStarts(normalized)
		normalized = capitalizePronounI(normalized)
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

var pronounIPattern = regexp.MustCompile(`\bi(?:['’](?:m|d|ll|ve|re|s))?\b`)

func capitalizePronounI(text string) string {
	return pronounIPattern.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
}

// lowercaseAbbreviations end in a period without ending the sentence.
var lowercaseAbbreviations = map[string]struct{}{
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {}, "approx": {},
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "st": {},
}

func capitalizeSentenceStarts(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	capitalizeNext := true
	for i, r := range text {
		if capitalizeNext && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
			capitalizeNext = false
		} else if capitalizeNext && unicode.IsDigit(r) {
			capitalizeNext = false
		}
		out.WriteRune(r)

		switch r {
		case '!', '?':
			capitalizeNext = true
		case '.':
			if isSentenceBoundary(text, i) {
				capitalizeNext = true
			}
		}
	}
	return out.String()
}

// isSentenceBoundary reports whether the period at idx ends a sentence.
func isSentenceBoundary(text string, idx int) bool {
	if next, _ := utf8.DecodeRuneInString(text[idx+1:]); idx+1 < len(text) && !unicode.IsSpace(next) && !strings.ContainsRune(`"')]`, next) {
		// 3.5, example.com
		return false
	}

	start := strings.LastIndexFunc(text[:idx], unicode.IsSpace) + 1
	token := strings.ToLower(strings.Trim(text[start:idx], `"'(`))
	if _, ok := lowercaseAbbreviations[token]; ok {
		return false
	}
	return true
}
