package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Audio.ChunkIntervalMS <= 0 {
		return nil, fmt.Errorf("audio.chunk_interval_ms must be > 0")
	}

	rec := cfg.Recognition
	switch rec.Backend {
	case BackendGRPC:
		if strings.TrimSpace(rec.GRPC) == "" {
			return nil, fmt.Errorf("recognition.grpc must not be empty when recognition.backend=grpc")
		}
	case BackendWebsocket:
		url := strings.TrimSpace(rec.WebsocketURL)
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			return nil, fmt.Errorf("recognition.websocket_url must start with ws:// or wss://")
		}
	default:
		return nil, fmt.Errorf("recognition.backend must be one of: grpc, websocket")
	}

	if strings.TrimSpace(rec.Language) == "" {
		return nil, fmt.Errorf("recognition.language must not be empty")
	}
	tag, err := language.Parse(rec.Language)
	if err != nil {
		return nil, fmt.Errorf("recognition.language %q is not a valid language tag: %w", rec.Language, err)
	}
	if len(rec.SupportedLanguages) > 0 && !languageListed(tag, rec.SupportedLanguages) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("recognition.language %q is not in recognition.supported_languages", rec.Language)})
	}
	if rec.NoSpeechTimeoutMS < 0 {
		return nil, fmt.Errorf("recognition.no_speech_timeout_ms must be >= 0")
	}
	if rec.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("recognition.dial_timeout_ms must be > 0")
	}

	if cfg.Session.MaxDurationS <= 0 {
		return nil, fmt.Errorf("session.max_duration_s must be > 0")
	}

	if cfg.Speech.Enable && len(cfg.Speech.Command.Argv) == 0 {
		return nil, fmt.Errorf("speech.command must not be empty when speech.enable=true")
	}
	warnings = append(warnings, rangeWarning("speech.rate", cfg.Speech.Rate, 0.1, 2.0)...)
	warnings = append(warnings, rangeWarning("speech.pitch", cfg.Speech.Pitch, 0, 2.0)...)
	warnings = append(warnings, rangeWarning("speech.volume", cfg.Speech.Volume, 0, 1.0)...)

	if cfg.Output.Clipboard && len(cfg.Output.ClipboardCmd.Argv) == 0 {
		return nil, fmt.Errorf("output.clipboard_cmd must not be empty when output.clipboard=true")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}
	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	if _, err := ParseLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	return warnings, nil
}

// ParseLogLevel maps log.level to a slog level. Empty means info.
func ParseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(raw) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	return level, nil
}

func languageListed(tag language.Tag, supported []string) bool {
	for _, raw := range supported {
		candidate, err := language.Parse(raw)
		if err != nil {
			continue
		}
		if candidate == tag {
			return true
		}
	}
	return false
}

func rangeWarning(key string, value, lo, hi float64) []Warning {
	if value >= lo && value <= hi {
		return nil
	}
	return []Warning{{Message: fmt.Sprintf("%s=%.2f is outside [%.1f, %.1f] and will be clamped", key, value, lo, hi)}}
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic recognizer phrase hints.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			existing, exists := selected[phrase]
			if !exists {
				selected[phrase] = candidate{boost: set.Boost, from: name}
				continue
			}
			if set.Boost > existing.boost {
				warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
				selected[phrase] = candidate{boost: set.Boost, from: name}
			}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}
	sort.Slice(phrases, func(i, j int) bool {
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}
