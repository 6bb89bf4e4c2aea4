package playback

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mindfulai/mindful/internal/logging"
)

const (
	DefaultRate   = 0.9
	DefaultPitch  = 1.0
	DefaultVolume = 0.8

	voiceLookupTimeout = 2 * time.Second
)

// Request is one utterance to speak.
type Request struct {
	Text      string
	VoiceName string
	Language  string
	Rate      float64
	Pitch     float64
	Volume    float64
}

// DefaultRequest returns a request for text with the default prosody.
func DefaultRequest(text string) Request {
	return Request{Text: text, Rate: DefaultRate, Pitch: DefaultPitch, Volume: DefaultVolume}
}

// Utterance is a resolved request handed to a Synthesizer.
type Utterance struct {
	Text     string
	Voice    *Voice
	Language string
	Rate     float64
	Pitch    float64
	Volume   float64
}

// Synthesizer renders and plays speech. Speak blocks until playback ends or
// ctx is cancelled.
type Synthesizer interface {
	Available() bool
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, utt Utterance) error
}

// Options configures a Controller.
type Options struct {
	Synthesizer Synthesizer
	// OnDone runs after a playback finishes without being cancelled.
	OnDone func(Request)
	Logger *slog.Logger
}

// Controller keeps at most one playback active; a new request cancels the
// previous one.
type Controller struct {
	synth  Synthesizer
	onDone func(Request)
	logger *slog.Logger

	mu     sync.Mutex
	active *run

	// voices caches the first successful lookup.
	voicesMu sync.Mutex
	voices   []Voice
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController builds a controller around opts.Synthesizer.
func NewController(opts Options) *Controller {
	return &Controller{
		synth:  opts.Synthesizer,
		onDone: opts.OnDone,
		logger: logging.OrDiscard(opts.Logger),
	}
}

// Available reports whether speech synthesis is usable.
func (c *Controller) Available() bool {
	return c.synth != nil && c.synth.Available()
}

// Speak cancels any active playback and starts req. It returns false, with no
// side effects, when synthesis is unavailable or the text is blank.
func (c *Controller) Speak(req Request) bool {
	text := strings.TrimSpace(req.Text)
	if text == "" || !c.Available() {
		return false
	}

	utt := Utterance{
		Text:     text,
		Language: req.Language,
		Rate:     clamp(req.Rate, 0.1, 2),
		Pitch:    clamp(req.Pitch, 0, 2),
		Volume:   clamp(req.Volume, 0, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	current := &run{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	previous := c.active
	c.active = current
	c.mu.Unlock()

	if previous != nil {
		previous.cancel()
	}

	go c.play(ctx, current, previous, req, utt)
	return true
}

func (c *Controller) play(ctx context.Context, current *run, previous *run, req Request, utt Utterance) {
	defer close(current.done)
	defer current.cancel()

	utt.Voice = SelectVoice(c.Voices(), req.VoiceName, req.Language)

	// Never overlap audio with the cancelled playback.
	if previous != nil {
		<-previous.done
	}

	err := c.synth.Speak(ctx, utt)
	cancelled := ctx.Err() != nil

	c.mu.Lock()
	if c.active == current {
		c.active = nil
	}
	c.mu.Unlock()

	switch {
	case cancelled:
		c.logger.Debug("playback cancelled")
	case err != nil:
		c.logger.Error("playback failed", "error", err.Error())
	case c.onDone != nil:
		c.onDone(req)
	}
}

// Stop cancels the active playback. It returns false when nothing is playing.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	current := c.active
	c.active = nil
	c.mu.Unlock()

	if current == nil {
		return false
	}
	current.cancel()
	return true
}

// Speaking reports whether a playback is active.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Voices lists the synthesizer's voices. A successful lookup is cached;
// failures yield none and are retried on the next call.
func (c *Controller) Voices() []Voice {
	if !c.Available() {
		return nil
	}
	c.voicesMu.Lock()
	defer c.voicesMu.Unlock()
	if c.voices != nil {
		return c.voices
	}

	ctx, cancel := context.WithTimeout(context.Background(), voiceLookupTimeout)
	defer cancel()

	voices, err := c.synth.Voices(ctx)
	if err != nil {
		c.logger.Warn("voice lookup failed", "error", err.Error())
		return nil
	}
	if voices == nil {
		voices = []Voice{}
	}
	c.voices = voices
	return voices
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
