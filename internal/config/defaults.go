package config

const (
	BackendGRPC      = "grpc"
	BackendWebsocket = "websocket"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"
	speech := "espeak-ng"

	return Config{
		Audio: AudioConfig{
			Input:           "default",
			Fallback:        "default",
			ChunkIntervalMS: 1000,
		},
		Recognition: RecognitionConfig{
			Backend:              BackendGRPC,
			GRPC:                 "127.0.0.1:50051",
			WebsocketURL:         "wss://api.deepgram.com/v1/listen",
			APIKeyEnv:            "MINDFUL_RECOGNIZER_API_KEY",
			Language:             "en-US",
			SupportedLanguages:   []string{"en-US", "en-GB"},
			InterimResults:       false,
			AutomaticPunctuation: true,
			NoSpeechTimeoutMS:    8000,
			DialTimeoutMS:        3000,
		},
		Session: SessionConfig{MaxDurationS: 60},
		Speech: SpeechConfig{
			Enable:  true,
			Command: CommandConfig{Raw: speech, Argv: mustParseArgv(speech)},
			Rate:    0.9,
			Pitch:   1.0,
			Volume:  0.8,
		},
		Output: OutputConfig{
			Clipboard:    false,
			ClipboardCmd: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			SoundEnable:    true,
			DesktopAppName: "mindful",
			ErrorTimeoutMS: 1600,
		},
		Vocab: VocabConfig{
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Log: LogConfig{Level: "info"},
	}
}
