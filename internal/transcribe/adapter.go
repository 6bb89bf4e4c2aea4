package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/config"
	"github.com/mindfulai/mindful/internal/fault"
	"github.com/mindfulai/mindful/internal/logging"
	"github.com/mindfulai/mindful/internal/transcript"
	"golang.org/x/text/language"
)

// ErrNoSpeech is reported when a pass hears nothing for a full silence window.
var ErrNoSpeech = errors.New("no speech detected")

// EventKind distinguishes adapter events.
type EventKind int

const (
	EventResult EventKind = iota + 1
	EventError
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is delivered to the emit callback of Start. Err is always a *fault.Error.
type Event struct {
	Kind   EventKind
	Result Result
	Err    *fault.Error
}

const defaultSilenceThreshold = 500

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Engine               Engine
	Model                string
	InterimResults       bool
	AutomaticPunctuation bool
	Phrases              []config.SpeechPhrase
	SupportedLanguages   []string

	// NoSpeechTimeout is the silence window of the watchdog; zero disables it.
	NoSpeechTimeout time.Duration
	// SilenceThreshold is the RMS level, in s16 units, that counts as speech.
	SilenceThreshold float64

	Logger *slog.Logger
}

// Adapter runs at most one recognition pass at a time.
type Adapter struct {
	opts    AdapterOptions
	logger  *slog.Logger
	matcher language.Matcher

	mu      sync.Mutex
	current *pass
}

// NewAdapter builds an adapter around opts.Engine.
func NewAdapter(opts AdapterOptions) *Adapter {
	if opts.SilenceThreshold <= 0 {
		opts.SilenceThreshold = defaultSilenceThreshold
	}

	a := &Adapter{opts: opts, logger: logging.OrDiscard(opts.Logger)}

	var supported []language.Tag
	for _, raw := range opts.SupportedLanguages {
		if tag, err := language.Parse(raw); err == nil {
			supported = append(supported, tag)
		}
	}
	if len(supported) > 0 {
		a.matcher = language.NewMatcher(supported)
	}
	return a
}

// Available reports whether a recognizer backend is usable at all.
func (a *Adapter) Available() bool {
	return a.opts.Engine != nil && a.opts.Engine.Available()
}

// SupportsLanguage reports whether locale is a well-formed tag the adapter accepts.
func (a *Adapter) SupportsLanguage(locale string) bool {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return false
	}
	if a.matcher == nil {
		return true
	}
	_, _, confidence := a.matcher.Match(tag)
	return confidence != language.No
}

// Start begins one recognition pass over feed. It returns false when no
// engine is usable, the locale is rejected, or a pass is already running.
// Engine failures after a successful Start arrive as EventError.
//
// emit must not call Stop synchronously.
func (a *Adapter) Start(ctx context.Context, locale string, feed <-chan []byte, emit func(Event)) bool {
	if !a.Available() || !a.SupportsLanguage(locale) || emit == nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil && !a.current.finished() {
		return false
	}

	passCtx, cancel := context.WithCancel(ctx)
	p := &pass{
		cancel: cancel,
		emit:   emit,
		done:   make(chan struct{}),
	}
	p.touch(time.Now())
	a.current = p

	go a.run(passCtx, p, strings.TrimSpace(locale), feed)
	return true
}

// Stop ends the running pass. Once Stop returns, no further events from that
// pass are delivered; an in-flight emit is allowed to finish first.
func (a *Adapter) Stop() {
	a.mu.Lock()
	p := a.current
	a.current = nil
	a.mu.Unlock()

	if p != nil {
		p.stop()
	}
}

// Active reports whether a pass is running.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil && !a.current.finished()
}

func (a *Adapter) run(ctx context.Context, p *pass, locale string, feed <-chan []byte) {
	defer close(p.done)
	defer p.cancel()

	stream, err := a.opts.Engine.Open(ctx, Options{
		Language:             locale,
		Model:                a.opts.Model,
		SampleRate:           audio.SampleRate,
		InterimResults:       a.opts.InterimResults,
		AutomaticPunctuation: a.opts.AutomaticPunctuation,
		Phrases:              a.opts.Phrases,
	})
	if err != nil {
		a.logger.Error("recognizer open failed", "engine", a.opts.Engine.Name(), "error", err.Error())
		p.finish(err)
		return
	}
	defer func() { _ = stream.Close() }()
	unwatch := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer unwatch()

	a.logger.Debug("recognition pass started", "engine", a.opts.Engine.Name(), "language", locale)

	go a.pump(ctx, p, stream, feed)
	if a.opts.NoSpeechTimeout > 0 {
		go a.watch(ctx, p)
	}

	for {
		result, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				p.finish(nil)
				return
			}
			p.finish(err)
			return
		}

		if !result.IsFinal && !a.opts.InterimResults {
			continue
		}
		result.Text = transcript.Normalize(result.Text, transcript.Options{CapitalizeSentences: result.IsFinal})
		p.deliver(Event{Kind: EventResult, Result: result})

		// One utterance per pass: the first final result completes it.
		if result.IsFinal {
			p.finish(nil)
			return
		}
	}
}

func (a *Adapter) pump(ctx context.Context, p *pass, stream Stream, feed <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-feed:
			if !ok {
				if err := stream.CloseSend(); err != nil {
					a.logger.Debug("recognizer close send failed", "error", err.Error())
				}
				return
			}
			if rms(frame) >= a.opts.SilenceThreshold {
				p.touch(time.Now())
			}
			if err := stream.SendAudio(frame); err != nil {
				if ctx.Err() == nil {
					p.finish(fault.New(fault.NetworkError, "send", err))
				}
				return
			}
		}
	}
}

func (a *Adapter) watch(ctx context.Context, p *pass) {
	window := a.opts.NoSpeechTimeout
	interval := window / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if p.terminal.Load() {
				return
			}
			if now.Sub(p.lastVoice()) < window {
				continue
			}
			p.touch(now)
			p.deliver(Event{
				Kind: EventError,
				Err:  fault.New(fault.NoSpeechDetected, "no-speech", ErrNoSpeech),
			})
		}
	}
}

type pass struct {
	cancel context.CancelFunc
	emit   func(Event)
	done   chan struct{}

	emitMu   sync.Mutex
	stopped  atomic.Bool
	terminal atomic.Bool
	voiceAt  atomic.Int64
}

func (p *pass) deliver(ev Event) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	if p.stopped.Load() {
		return
	}
	p.emit(ev)
}

// finish reports the terminal outcome of the pass exactly once: an optional
// error followed by EventEnded.
func (p *pass) finish(err error) {
	if !p.terminal.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	if err != nil {
		p.deliver(Event{Kind: EventError, Err: fault.Wrap(err)})
	}
	p.deliver(Event{Kind: EventEnded})
}

// stop waits out an in-flight emit, then suppresses everything after it.
func (p *pass) stop() {
	p.emitMu.Lock()
	p.stopped.Store(true)
	p.emitMu.Unlock()
	p.cancel()
}

func (p *pass) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return p.stopped.Load()
	}
}

func (p *pass) touch(now time.Time) {
	p.voiceAt.Store(now.UnixNano())
}

func (p *pass) lastVoice() time.Time {
	return time.Unix(0, p.voiceAt.Load())
}
