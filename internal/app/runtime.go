package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/capability"
	"github.com/mindfulai/mindful/internal/config"
	"github.com/mindfulai/mindful/internal/indicator"
	"github.com/mindfulai/mindful/internal/output"
	"github.com/mindfulai/mindful/internal/playback"
	"github.com/mindfulai/mindful/internal/session"
	"github.com/mindfulai/mindful/internal/speechgrpc"
	"github.com/mindfulai/mindful/internal/speechws"
	"github.com/mindfulai/mindful/internal/transcribe"
	"github.com/mindfulai/mindful/internal/voice"
)

// components is one fully wired voice stack.
type components struct {
	mic       *audio.Microphone
	player    *playback.Controller
	indicator *indicator.Notifier
	session   *session.Controller
	coord     *voice.Coordinator
	spoken    chan playback.Request
}

type wiring struct {
	cfg    config.Config
	logger *slog.Logger
	// out receives one JSON line per committed transcript.
	out io.Writer
	// onFinished runs after every session cleanup.
	onFinished func(session.Result)
	// stopAfterCommit ends the session once a final transcript is delivered.
	stopAfterCommit bool
}

func buildComponents(w wiring) *components {
	cfg := w.cfg
	c := &components{spoken: make(chan playback.Request, 1)}

	c.mic = audio.NewMicrophone(audio.Options{
		Input:         cfg.Audio.Input,
		Fallback:      cfg.Audio.Fallback,
		ChunkInterval: time.Duration(cfg.Audio.ChunkIntervalMS) * time.Millisecond,
		Logger:        w.logger,
	})

	phrases, _, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		w.logger.Warn("speech phrases ignored", "error", err.Error())
		phrases = nil
	}
	adapter := transcribe.NewAdapter(transcribe.AdapterOptions{
		Engine:               newEngine(cfg.Recognition),
		Model:                cfg.Recognition.Model,
		InterimResults:       cfg.Recognition.InterimResults,
		AutomaticPunctuation: cfg.Recognition.AutomaticPunctuation,
		Phrases:              phrases,
		SupportedLanguages:   cfg.Recognition.SupportedLanguages,
		NoSpeechTimeout:      time.Duration(cfg.Recognition.NoSpeechTimeoutMS) * time.Millisecond,
		Logger:               w.logger,
	})

	var synth playback.Synthesizer
	if cfg.Speech.Enable {
		synth = playback.NewEspeak(cfg.Speech.Command.Argv)
	}
	c.player = playback.NewController(playback.Options{
		Synthesizer: synth,
		OnDone: func(req playback.Request) {
			select {
			case c.spoken <- req:
			default:
			}
		},
		Logger: w.logger,
	})

	c.indicator = indicator.New(cfg.Indicator, w.logger)

	committer := output.NewCommitter(cfg.Output, w.out, w.logger)
	var sink session.Committer = committer
	if w.stopAfterCommit {
		sink = session.CommitFunc(func(ctx context.Context, t session.Transcript) error {
			err := committer.Commit(ctx, t)
			if strings.TrimSpace(t.Text) != "" {
				c.session.Stop()
			}
			return err
		})
	}

	c.session = session.NewController(session.Options{
		Microphone: c.mic,
		Recognizer: adapter,
		Prober: capability.Probe{
			Recognition: adapter.Available,
			// Pulse capture is always compiled in; reachability is MediaDevices.
			Recording:    func() bool { return true },
			MediaDevices: audio.DefaultSourceAvailable,
			Synthesis:    c.player.Available,
		},
		Indicator:   c.indicator,
		Committer:   sink,
		Language:    cfg.Recognition.Language,
		MaxDuration: time.Duration(cfg.Session.MaxDurationS) * time.Second,
		OnFinished:  w.onFinished,
		Logger:      w.logger,
	})

	c.coord = voice.New(voice.Options{
		Session:    c.session,
		Playback:   c.player,
		Microphone: c.mic,
		Language:   cfg.Recognition.Language,
		Speech: voice.SpeakOptions{
			Rate:      voice.Float64(cfg.Speech.Rate),
			Pitch:     voice.Float64(cfg.Speech.Pitch),
			Volume:    voice.Float64(cfg.Speech.Volume),
			VoiceName: cfg.Speech.Voice,
		},
		Logger: w.logger,
	})
	return c
}

// newEngine picks the recognizer backend named by cfg.Backend.
func newEngine(cfg config.RecognitionConfig) transcribe.Engine {
	var apiKey string
	if env := strings.TrimSpace(cfg.APIKeyEnv); env != "" {
		apiKey = os.Getenv(env)
	}
	dialTimeout := time.Duration(cfg.DialTimeoutMS) * time.Millisecond

	if cfg.Backend == config.BackendWebsocket {
		return speechws.New(speechws.Config{URL: cfg.WebsocketURL, APIKey: apiKey, DialTimeout: dialTimeout})
	}
	return speechgrpc.New(speechgrpc.Config{Endpoint: cfg.GRPC, APIKey: apiKey, DialTimeout: dialTimeout})
}
