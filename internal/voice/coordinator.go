// Package voice is the public surface of the voice features: capture and
// transcription sessions, spoken replies, and transcript sentiment.
package voice

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/capability"
	"github.com/mindfulai/mindful/internal/fsm"
	"github.com/mindfulai/mindful/internal/ipc"
	"github.com/mindfulai/mindful/internal/logging"
	"github.com/mindfulai/mindful/internal/playback"
	"github.com/mindfulai/mindful/internal/sentiment"
	"github.com/mindfulai/mindful/internal/session"
)

// MicrophoneProbe opens and closes the microphone without recording.
type MicrophoneProbe interface {
	Acquire(ctx context.Context) (*audio.Handle, error)
	Release(h *audio.Handle) error
}

// SpeakOptions overrides the configured prosody. Nil fields and an empty
// VoiceName keep the defaults; an explicit zero is honored.
type SpeakOptions struct {
	Rate      *float64
	Pitch     *float64
	Volume    *float64
	VoiceName string
}

// Float64 returns a pointer to v for SpeakOptions fields.
func Float64(v float64) *float64 { return &v }

// prosody is a fully resolved set of speech defaults.
type prosody struct {
	rate, pitch, volume float64
	voiceName           string
}

// apply layers opts over p.
func (p prosody) apply(opts SpeakOptions) prosody {
	if opts.Rate != nil {
		p.rate = *opts.Rate
	}
	if opts.Pitch != nil {
		p.pitch = *opts.Pitch
	}
	if opts.Volume != nil {
		p.volume = *opts.Volume
	}
	if opts.VoiceName != "" {
		p.voiceName = opts.VoiceName
	}
	return p
}

// Options wires a Coordinator.
type Options struct {
	Session    *session.Controller
	Playback   *playback.Controller
	Microphone MicrophoneProbe

	// Language is the speech language used for voice selection.
	Language string
	// Speech holds the default prosody and voice, layered over the playback
	// defaults.
	Speech SpeakOptions

	Logger *slog.Logger
}

// Coordinator ties the session controller and playback together.
type Coordinator struct {
	session  *session.Controller
	playback *playback.Controller
	mic      MicrophoneProbe
	language string
	speech   prosody
	logger   *slog.Logger
}

// New builds a Coordinator. Speech defaults fall back to the playback defaults.
func New(opts Options) *Coordinator {
	speech := prosody{
		rate:   playback.DefaultRate,
		pitch:  playback.DefaultPitch,
		volume: playback.DefaultVolume,
	}.apply(opts.Speech)
	language := opts.Language
	if language == "" {
		language = session.DefaultLanguage
	}

	return &Coordinator{
		session:  opts.Session,
		playback: opts.Playback,
		mic:      opts.Microphone,
		language: language,
		speech:   speech,
		logger:   logging.OrDiscard(opts.Logger),
	}
}

// Start begins a capture session; see session.Controller.Start.
func (c *Coordinator) Start(onResult session.ResultFunc, onError session.ErrorFunc) bool {
	if c.session == nil {
		return false
	}
	return c.session.Start(onResult, onError)
}

// Stop ends the active capture session.
func (c *Coordinator) Stop() bool {
	if c.session == nil {
		return false
	}
	return c.session.Stop()
}

// Speak replaces any active playback with text.
func (c *Coordinator) Speak(text string, opts SpeakOptions) bool {
	if c.playback == nil {
		return false
	}
	p := c.speech.apply(opts)
	req := playback.Request{
		Text:      text,
		VoiceName: p.voiceName,
		Language:  c.language,
		Rate:      p.rate,
		Pitch:     p.pitch,
		Volume:    p.volume,
	}
	return c.playback.Speak(req)
}

// StopSpeaking cancels the active playback.
func (c *Coordinator) StopSpeaking() bool {
	if c.playback == nil {
		return false
	}
	return c.playback.Stop()
}

// ClassifySentiment labels transcript text.
func (c *Coordinator) ClassifySentiment(text string) sentiment.Label {
	return sentiment.Classify(text)
}

// IsSupported reports whether capture sessions can run on this host.
func (c *Coordinator) IsSupported() bool {
	return c.session != nil && c.session.Supported()
}

// Voices lists the available synthesis voices.
func (c *Coordinator) Voices() []playback.Voice {
	if c.playback == nil {
		return nil
	}
	return c.playback.Voices()
}

func (c *Coordinator) State() fsm.State {
	if c.session == nil {
		return fsm.StateIdle
	}
	return c.session.State()
}

func (c *Coordinator) Snapshot() session.RecordingSession {
	if c.session == nil {
		return session.RecordingSession{State: fsm.StateIdle}
	}
	return c.session.Snapshot()
}

// MicrophonePermission reports whether the microphone can be opened. A
// running session already owns it, which counts as granted.
func (c *Coordinator) MicrophonePermission(ctx context.Context) capability.Permission {
	if c.State().Active() {
		return capability.PermissionGranted
	}
	if c.mic == nil {
		return capability.PermissionUnknown
	}

	handle, err := c.mic.Acquire(ctx)
	if err != nil {
		c.logger.Warn("microphone permission check failed", "error", err.Error())
		return capability.PermissionFromError(err)
	}
	if err := c.mic.Release(handle); err != nil {
		c.logger.Warn("microphone release failed", "error", err.Error())
	}
	return capability.PermissionGranted
}

// TestMicrophone opens and immediately releases the microphone. It fails
// while a session holds the device.
func (c *Coordinator) TestMicrophone(ctx context.Context) error {
	if c.mic == nil {
		return session.ErrUnsupported
	}
	handle, err := c.mic.Acquire(ctx)
	if err != nil {
		return err
	}
	return c.mic.Release(handle)
}

// Handle serves IPC commands. Session commands go to the session controller.
func (c *Coordinator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	state := string(c.State())
	switch req.Command {
	case "speak":
		if strings.TrimSpace(req.Text) == "" {
			return ipc.Response{OK: false, State: state, Error: "speak requires text"}
		}
		if !c.Speak(req.Text, SpeakOptions{}) {
			return ipc.Response{OK: false, State: state, Error: "speech synthesis unavailable"}
		}
		return ipc.Response{OK: true, State: state, Message: "speaking"}
	case "stop-speaking":
		if !c.StopSpeaking() {
			return ipc.Response{OK: false, State: state, Error: "nothing is playing"}
		}
		return ipc.Response{OK: true, State: state, Message: "playback stopped"}
	case "sentiment":
		return ipc.Response{OK: true, State: state, Sentiment: string(c.ClassifySentiment(req.Text))}
	default:
		if c.session == nil {
			return ipc.Response{OK: false, State: state, Error: "no session controller"}
		}
		return c.session.Handle(ctx, req)
	}
}
