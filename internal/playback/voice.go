// Package playback speaks supportive responses aloud, one utterance at a time.
package playback

import (
	"strings"

	"golang.org/x/text/language"
)

// Voice is one synthesizer voice.
type Voice struct {
	ID       string
	Name     string
	Language string
	Gender   string
	Local    bool
}

var empatheticNames = []string{"female", "samantha", "karen", "siri"}

// SelectVoice picks the voice for an utterance: an exact name match, then a
// voice that reads as warm and empathetic, then a local voice for language.
// It returns nil when the platform default should be used.
func SelectVoice(voices []Voice, name string, lang string) *Voice {
	if name != "" {
		for i := range voices {
			if voices[i].Name == name {
				return &voices[i]
			}
		}
	}

	for i := range voices {
		lower := strings.ToLower(voices[i].Name)
		for _, hint := range empatheticNames {
			if strings.Contains(lower, hint) {
				return &voices[i]
			}
		}
		if strings.EqualFold(voices[i].Gender, "female") {
			return &voices[i]
		}
	}

	want := baseLanguage(lang)
	for i := range voices {
		if voices[i].Local && baseLanguage(voices[i].Language) == want {
			return &voices[i]
		}
	}
	return nil
}

// baseLanguage reduces a tag such as "en-GB" to its base "en".
func baseLanguage(raw string) string {
	if raw == "" {
		raw = "en"
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	base, _ := tag.Base()
	return base.String()
}
