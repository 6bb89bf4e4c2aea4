// Package config resolves, parses, validates, and defaults mindful configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Audio       AudioConfig
	Recognition RecognitionConfig
	Session     SessionConfig
	Speech      SpeechConfig
	Output      OutputConfig
	Indicator   IndicatorConfig
	Vocab       VocabConfig
	Log         LogConfig
}

// AudioConfig controls input-source selection and chunking.
type AudioConfig struct {
	Input           string
	Fallback        string
	ChunkIntervalMS int
}

// RecognitionConfig controls the streaming recognizer backend.
type RecognitionConfig struct {
	Backend              string
	GRPC                 string
	WebsocketURL         string
	APIKeyEnv            string
	Language             string
	SupportedLanguages   []string
	Model                string
	InterimResults       bool
	AutomaticPunctuation bool
	NoSpeechTimeoutMS    int
	DialTimeoutMS        int
}

// SessionConfig bounds one recording session.
type SessionConfig struct {
	MaxDurationS int
}

// SpeechConfig controls spoken response playback.
type SpeechConfig struct {
	Enable  bool
	Command CommandConfig
	Voice   string
	Rate    float64
	Pitch   float64
	Volume  float64
}

// OutputConfig controls where final transcripts are delivered.
type OutputConfig struct {
	Clipboard     bool
	ClipboardCmd  CommandConfig
	TrailingSpace bool
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable         bool
	SoundEnable    bool
	DesktopAppName string
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls recognizer phrase hints.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// LogConfig controls the runtime log level.
type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase hint sent to recognizers.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

func (c AudioConfig) ChunkInterval() time.Duration {
	return time.Duration(c.ChunkIntervalMS) * time.Millisecond
}

func (c RecognitionConfig) NoSpeechTimeout() time.Duration {
	return time.Duration(c.NoSpeechTimeoutMS) * time.Millisecond
}

func (c RecognitionConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

func (c SessionConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationS) * time.Second
}
