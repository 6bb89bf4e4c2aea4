package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type payload struct {
	Audio       *audioPayload       `json:"audio"`
	Recognition *recognitionPayload `json:"recognition"`
	Session     *sessionPayload     `json:"session"`
	Speech      *speechPayload      `json:"speech"`
	Output      *outputPayload      `json:"output"`
	Indicator   *indicatorPayload   `json:"indicator"`
	Vocab       *vocabPayload       `json:"vocab"`
	Log         *logPayload         `json:"log"`
}

type audioPayload struct {
	Input           *string `json:"input"`
	Fallback        *string `json:"fallback"`
	ChunkIntervalMS *int    `json:"chunk_interval_ms"`
}

type recognitionPayload struct {
	Backend              *string     `json:"backend"`
	GRPC                 *string     `json:"grpc"`
	WebsocketURL         *string     `json:"websocket_url"`
	APIKeyEnv            *string     `json:"api_key_env"`
	Language             *string     `json:"language"`
	SupportedLanguages   *stringList `json:"supported_languages"`
	Model                *string     `json:"model"`
	InterimResults       *bool       `json:"interim_results"`
	AutomaticPunctuation *bool       `json:"automatic_punctuation"`
	NoSpeechTimeoutMS    *int        `json:"no_speech_timeout_ms"`
	DialTimeoutMS        *int        `json:"dial_timeout_ms"`
}

type sessionPayload struct {
	MaxDurationS *int `json:"max_duration_s"`
}

type speechPayload struct {
	Enable  *bool    `json:"enable"`
	Command *string  `json:"command"`
	Voice   *string  `json:"voice"`
	Rate    *float64 `json:"rate"`
	Pitch   *float64 `json:"pitch"`
	Volume  *float64 `json:"volume"`
}

type outputPayload struct {
	Clipboard     *bool   `json:"clipboard"`
	ClipboardCmd  *string `json:"clipboard_cmd"`
	TrailingSpace *bool   `json:"trailing_space"`
}

type indicatorPayload struct {
	Enable         *bool   `json:"enable"`
	SoundEnable    *bool   `json:"sound_enable"`
	DesktopAppName *string `json:"desktop_app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type vocabPayload struct {
	Global     *stringList                `json:"global"`
	MaxPhrases *int                       `json:"max_phrases"`
	Sets       map[string]vocabSetPayload `json:"sets"`
}

type vocabSetPayload struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type logPayload struct {
	Level *string `json:"level"`
}

// stringList accepts either a JSON string array or a comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("expected string array or comma-delimited string")
	}
	out := make([]string, 0)
	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// Parse reads JSONC configuration content on top of base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var p payload
	if err := decoder.Decode(&p); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := p.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (p payload) applyTo(cfg *Config) error {
	if a := p.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		set(&cfg.Audio.ChunkIntervalMS, a.ChunkIntervalMS)
	}

	if r := p.Recognition; r != nil {
		if r.Backend != nil {
			cfg.Recognition.Backend = strings.ToLower(strings.TrimSpace(*r.Backend))
		}
		setString(&cfg.Recognition.GRPC, r.GRPC)
		setString(&cfg.Recognition.WebsocketURL, r.WebsocketURL)
		setString(&cfg.Recognition.APIKeyEnv, r.APIKeyEnv)
		setString(&cfg.Recognition.Language, r.Language)
		if r.SupportedLanguages != nil {
			cfg.Recognition.SupportedLanguages = append([]string(nil), (*r.SupportedLanguages)...)
		}
		setString(&cfg.Recognition.Model, r.Model)
		set(&cfg.Recognition.InterimResults, r.InterimResults)
		set(&cfg.Recognition.AutomaticPunctuation, r.AutomaticPunctuation)
		set(&cfg.Recognition.NoSpeechTimeoutMS, r.NoSpeechTimeoutMS)
		set(&cfg.Recognition.DialTimeoutMS, r.DialTimeoutMS)
	}

	if p.Session != nil {
		set(&cfg.Session.MaxDurationS, p.Session.MaxDurationS)
	}

	if s := p.Speech; s != nil {
		set(&cfg.Speech.Enable, s.Enable)
		if s.Command != nil {
			command, err := parseCommand("speech.command", *s.Command)
			if err != nil {
				return err
			}
			cfg.Speech.Command = command
		}
		setString(&cfg.Speech.Voice, s.Voice)
		set(&cfg.Speech.Rate, s.Rate)
		set(&cfg.Speech.Pitch, s.Pitch)
		set(&cfg.Speech.Volume, s.Volume)
	}

	if o := p.Output; o != nil {
		set(&cfg.Output.Clipboard, o.Clipboard)
		if o.ClipboardCmd != nil {
			command, err := parseCommand("output.clipboard_cmd", *o.ClipboardCmd)
			if err != nil {
				return err
			}
			cfg.Output.ClipboardCmd = command
		}
		set(&cfg.Output.TrailingSpace, o.TrailingSpace)
	}

	if i := p.Indicator; i != nil {
		set(&cfg.Indicator.Enable, i.Enable)
		set(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		set(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if v := p.Vocab; v != nil {
		if v.Global != nil {
			cfg.Vocab.GlobalSets = nil
			for _, name := range *v.Global {
				if name = strings.TrimSpace(name); name != "" {
					cfg.Vocab.GlobalSets = append(cfg.Vocab.GlobalSets, name)
				}
			}
		}
		set(&cfg.Vocab.MaxPhrases, v.MaxPhrases)
		if v.Sets != nil {
			sets := make(map[string]VocabSet, len(cfg.Vocab.Sets)+len(v.Sets))
			for name, existing := range cfg.Vocab.Sets {
				sets[name] = existing
			}
			for name, raw := range v.Sets {
				trimmed := strings.TrimSpace(name)
				if trimmed == "" {
					return fmt.Errorf("vocab.sets contains an empty set name")
				}
				entry := VocabSet{Name: trimmed, Phrases: append([]string(nil), raw.Phrases...)}
				if raw.Boost != nil {
					entry.Boost = *raw.Boost
				}
				sets[trimmed] = entry
			}
			cfg.Vocab.Sets = sets
		}
	}

	if p.Log != nil && p.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*p.Log.Level))
	}

	return nil
}

func parseCommand(key string, raw string) (CommandConfig, error) {
	argv, err := parseArgv(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func set[T any](dst *T, value *T) {
	if value != nil {
		*dst = *value
	}
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}
