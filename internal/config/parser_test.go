package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyContentUsesBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseOverridesSections(t *testing.T) {
	content := `
{
  "audio": { "input": " elgato ", "chunk_interval_ms": 500 },
  "recognition": {
    "backend": "WebSocket",
    "websocket_url": "ws://127.0.0.1:2700/listen",
    "language": "en-GB",
    "supported_languages": "en-US, en-GB",
    "interim_results": true,
    "no_speech_timeout_ms": 0,
  },
  "session": { "max_duration_s": 30 },
  "speech": { "command": "espeak-ng --quiet", "voice": "Samantha", "rate": 1.2 },
  "output": { "clipboard": true, "clipboard_cmd": "xclip -selection clipboard" },
  "indicator": { "sound_enable": false },
  "log": { "level": "DEBUG" },
}
`
	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, "elgato", cfg.Audio.Input)
	require.Equal(t, 500, cfg.Audio.ChunkIntervalMS)
	require.Equal(t, BackendWebsocket, cfg.Recognition.Backend)
	require.Equal(t, "ws://127.0.0.1:2700/listen", cfg.Recognition.WebsocketURL)
	require.Equal(t, "en-GB", cfg.Recognition.Language)
	require.Equal(t, []string{"en-US", "en-GB"}, cfg.Recognition.SupportedLanguages)
	require.True(t, cfg.Recognition.InterimResults)
	require.Zero(t, cfg.Recognition.NoSpeechTimeout())
	require.Equal(t, 30, cfg.Session.MaxDurationS)
	require.Equal(t, []string{"espeak-ng", "--quiet"}, cfg.Speech.Command.Argv)
	require.Equal(t, "Samantha", cfg.Speech.Voice)
	require.InDelta(t, 1.2, cfg.Speech.Rate, 1e-9)
	require.True(t, cfg.Output.Clipboard)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.Output.ClipboardCmd.Argv)
	require.False(t, cfg.Indicator.SoundEnable)
	require.True(t, cfg.Indicator.Enable)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParseVocabSetsMergeWithBase(t *testing.T) {
	content := `{
  "vocab": {
    "global": ["care"],
    "sets": { "care": { "boost": 8, "phrases": ["mindfulness", "box breathing"] } }
  }
}`
	cfg, _, err := Parse(content, Default())
	require.NoError(t, err)
	require.Equal(t, []string{"care"}, cfg.Vocab.GlobalSets)
	require.Equal(t, VocabSet{Name: "care", Boost: 8, Phrases: []string{"mindfulness", "box breathing"}}, cfg.Vocab.Sets["care"])
}

func TestParseRejectsUnknownKeysWithPosition(t *testing.T) {
	_, _, err := Parse("{\n  \"audio\": { \"volume\": 3 }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseSyntaxErrorIncludesLineAndColumn(t *testing.T) {
	_, _, err := Parse("{\n  \"audio\": { \"input\": }\n}", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestParseInvalidCommand(t *testing.T) {
	_, _, err := Parse(`{"speech": {"command": "espeak-ng \"oops"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid speech.command")
}

func TestParseRunsValidation(t *testing.T) {
	_, _, err := Parse(`{"recognition": {"backend": "carrier-pigeon"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "recognition.backend")
}

func TestStringListUnmarshal(t *testing.T) {
	var list stringList
	require.NoError(t, list.UnmarshalJSON([]byte(`["a","b"]`)))
	require.Equal(t, []string{"a", "b"}, []string(list))

	require.NoError(t, list.UnmarshalJSON([]byte(`"a, b, , c"`)))
	require.Equal(t, []string{"a", "b", "c"}, []string(list))

	require.Error(t, list.UnmarshalJSON([]byte(`123`)))
}
