// Package session owns the voice capture lifecycle: microphone acquisition,
// recognition, the auto-stop bound, and the single cleanup path.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/capability"
	"github.com/mindfulai/mindful/internal/fault"
	"github.com/mindfulai/mindful/internal/fsm"
	"github.com/mindfulai/mindful/internal/ipc"
	"github.com/mindfulai/mindful/internal/logging"
	"github.com/mindfulai/mindful/internal/transcribe"
)

const (
	DefaultMaxDuration = 60 * time.Second
	DefaultLanguage    = "en-US"

	probeTimeout     = 2 * time.Second
	indicatorTimeout = 800 * time.Millisecond
	commitTimeout    = 5 * time.Second
)

// ResultFunc receives every transcript update in recognition order.
type ResultFunc func(text string, confidence float64)

// ErrorFunc receives classified session errors.
type ErrorFunc func(err *fault.Error)

// Trigger names what ended a session.
type Trigger string

const (
	TriggerStop    Trigger = "stop"
	TriggerTimeout Trigger = "timeout"
	TriggerError   Trigger = "error"
)

// RecordingSession is the live state of one capture attempt. It resets to
// its zero value, with State idle, whenever the controller returns to idle.
type RecordingSession struct {
	ID             uuid.UUID
	State          fsm.State
	StartedAt      time.Time
	ElapsedSeconds int
	LastTranscript string
	LastConfidence float64
	LastError      *fault.Error
}

// Result summarizes a finished session.
type Result struct {
	SessionID      uuid.UUID
	Trigger        Trigger
	StartedAt      time.Time
	FinishedAt     time.Time
	ElapsedSeconds int
	AudioDevice    string
	Transcript     string
	Confidence     float64
	Err            *fault.Error
	Artifact       audio.Artifact
	CleanupErr     error
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowListening(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowListening(context.Context)     {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) Hide(context.Context)              {}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func timeAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options wires a Controller.
type Options struct {
	Microphone Microphone
	Recognizer Recognizer
	Prober     capability.Prober
	Indicator  Indicator
	// Committer receives final transcripts. Optional.
	Committer Committer

	Language    string
	MaxDuration time.Duration

	// OnFinished runs after every cleanup with the session summary.
	OnFinished func(Result)

	AfterFunc AfterFunc
	Now       func() time.Time
	Logger    *slog.Logger
}

// Controller drives one recording session at a time.
type Controller struct {
	opts      Options
	logger    *slog.Logger
	indicator Indicator

	mu          sync.RWMutex
	state       fsm.State
	generation  uint64
	current     RecordingSession
	listeningAt time.Time
	handle      *audio.Handle
	capturing   bool
	recognizing bool
	timer       Timer
	cancel      context.CancelFunc
	onResult    ResultFunc
	onError     ErrorFunc

	last    Result
	hasLast bool
}

// NewController constructs a controller with safe default fallbacks.
func NewController(opts Options) *Controller {
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	if opts.Prober == nil {
		opts.Prober = capability.Static{}
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = timeAfterFunc
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		opts:      opts,
		logger:    logging.OrDiscard(opts.Logger),
		indicator: opts.Indicator,
		state:     fsm.StateIdle,
		current:   RecordingSession{State: fsm.StateIdle},
	}
}

// Availability probes the host capabilities.
func (c *Controller) Availability() capability.Availability {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return c.opts.Prober.Probe(ctx)
}

// Supported reports whether Start could succeed on this host.
func (c *Controller) Supported() bool {
	return c.opts.Microphone != nil && c.opts.Recognizer != nil && c.Availability().Supported()
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns a copy of the live session.
func (c *Controller) Snapshot() RecordingSession {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.current
	if c.state == fsm.StateListening {
		s.ElapsedSeconds = c.elapsedLocked()
	}
	return s
}

// LastResult returns the summary of the most recently finished session.
func (c *Controller) LastResult() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.hasLast
}

// Start begins a session. It returns false, with no side effects, when the
// host is unsupported or a session is already running. Acquisition happens
// asynchronously; results and errors arrive through the callbacks.
func (c *Controller) Start(onResult ResultFunc, onError ErrorFunc) bool {
	if c.State() != fsm.StateIdle {
		return false
	}
	if !c.Supported() {
		c.logger.Warn("voice capture unsupported")
		return false
	}

	c.mu.Lock()
	next, err := fsm.Transition(c.state, fsm.EventStart)
	if err != nil {
		c.mu.Unlock()
		return false
	}
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.state = next
	c.current = RecordingSession{ID: uuid.New(), State: next, StartedAt: c.opts.Now()}
	c.cancel = cancel
	c.onResult = onResult
	c.onError = onError
	id := c.current.ID
	c.mu.Unlock()

	c.logger.Info("session starting", "session_id", id.String(), "generation", gen)
	go c.acquire(ctx, gen)
	return true
}

// Stop ends the active session. It returns true only for the call that
// actually begins cleanup; cleanup completes asynchronously.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	state := c.state
	if !state.Active() {
		c.mu.Unlock()
		return false
	}
	next, err := fsm.Transition(state, fsm.EventStop)
	if err != nil {
		c.mu.Unlock()
		return false
	}
	c.freezeElapsedLocked()
	c.state = next
	c.current.State = next

	if state == fsm.StateAcquiring {
		// acquire finishes the teardown once the microphone answers.
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return true
	}

	job := c.detachLocked(TriggerStop, nil)
	c.mu.Unlock()

	go c.cleanup(job)
	return true
}

func (c *Controller) acquire(ctx context.Context, gen uint64) {
	mic := c.opts.Microphone

	handle, err := mic.Acquire(ctx)
	capturing := false
	if err == nil {
		if beginErr := mic.BeginCapture(handle); beginErr != nil {
			err = beginErr
		} else {
			capturing = true
		}
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if handle != nil {
			_ = mic.Release(handle)
		}
		return
	}
	c.handle = handle
	c.capturing = capturing

	if c.state == fsm.StateStopping {
		job := c.detachLocked(TriggerStop, nil)
		c.mu.Unlock()
		c.cleanup(job)
		return
	}
	if err != nil {
		job := c.failLocked(fault.Wrap(err))
		c.mu.Unlock()
		c.cleanup(job)
		return
	}

	next, err := fsm.Transition(c.state, fsm.EventAcquired)
	if err != nil {
		job := c.failLocked(fault.New(fault.UnknownError, "state", err))
		c.mu.Unlock()
		c.cleanup(job)
		return
	}
	c.state = next
	c.current.State = next
	c.listeningAt = c.opts.Now()

	emit := func(ev transcribe.Event) { c.onEvent(gen, ev) }
	if !c.opts.Recognizer.Start(ctx, c.opts.Language, mic.Feed(), emit) {
		job := c.failLocked(fault.New(
			fault.ServiceNotAllowed,
			"language-not-supported",
			fmt.Errorf("recognizer rejected locale %q", c.opts.Language),
		))
		c.mu.Unlock()
		c.cleanup(job)
		return
	}
	c.recognizing = true
	c.timer = c.opts.AfterFunc(c.opts.MaxDuration, func() { c.expire(gen) })
	id := c.current.ID
	c.mu.Unlock()

	c.logger.Info("session listening",
		"session_id", id.String(),
		"generation", gen,
		"device", handle.Device.ID,
	)
	if handle.Warning != "" {
		c.logger.Warn(handle.Warning, "session_id", id.String())
	}
	c.withIndicator(c.indicator.ShowListening)
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.state != fsm.StateListening {
		c.mu.Unlock()
		return
	}
	next, err := fsm.Transition(c.state, fsm.EventTimeout)
	if err != nil {
		c.mu.Unlock()
		return
	}
	c.freezeElapsedLocked()
	c.state = next
	c.current.State = next
	job := c.detachLocked(TriggerTimeout, nil)
	c.mu.Unlock()

	c.logger.Info("session auto-stop", "session_id", job.sessionID.String(), "generation", gen)
	c.cleanup(job)
}

// onEvent handles recognizer events. It runs inside the recognizer's emit,
// so cleanup triggered here must run on another goroutine.
func (c *Controller) onEvent(gen uint64, ev transcribe.Event) {
	c.mu.Lock()
	if gen != c.generation || c.state != fsm.StateListening {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case transcribe.EventResult:
		next, err := fsm.Transition(c.state, fsm.EventResult)
		if err != nil {
			c.mu.Unlock()
			c.logger.Warn("result dropped", "state", string(c.State()), "error", err.Error())
			return
		}
		c.state = next
		c.current.LastTranscript = ev.Result.Text
		c.current.LastConfidence = ev.Result.Confidence
		onResult := c.onResult
		id := c.current.ID
		c.mu.Unlock()

		if onResult != nil {
			onResult(ev.Result.Text, ev.Result.Confidence)
		}
		if ev.Result.IsFinal {
			c.logger.Info("final transcript",
				"session_id", id.String(),
				"transcript_length", len(ev.Result.Text),
				"confidence", ev.Result.Confidence,
			)
			go c.commit(Transcript{SessionID: id, Text: ev.Result.Text, Confidence: ev.Result.Confidence})
		}

	case transcribe.EventError:
		classified := ev.Err
		if classified == nil {
			classified = fault.New(fault.UnknownError, "", nil)
		}
		if classified.Kind.Recoverable() {
			c.current.LastError = classified
			onError := c.onError
			id := c.current.ID
			c.mu.Unlock()

			c.logger.Info("recoverable session error",
				"session_id", id.String(),
				"kind", string(classified.Kind),
				"code", classified.Code,
			)
			if onError != nil {
				onError(classified)
			}
			return
		}
		job := c.failLocked(classified)
		c.mu.Unlock()
		go c.cleanup(job)

	case transcribe.EventEnded:
		id := c.current.ID
		c.mu.Unlock()
		// Capture keeps running; only stop or the auto-stop bound tears down.
		c.logger.Debug("recognition pass ended", "session_id", id.String(), "generation", gen)

	default:
		c.mu.Unlock()
	}
}

func (c *Controller) commit(t Transcript) {
	if c.opts.Committer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if err := c.opts.Committer.Commit(ctx, t); err != nil {
		c.logger.Error("transcript commit failed", "session_id", t.SessionID.String(), "error", err.Error())
		c.withIndicator(func(ctx context.Context) { c.indicator.ShowError(ctx, "Could not deliver transcript") })
		return
	}
	c.withIndicator(c.indicator.CueComplete)
}

// failLocked moves the session to Error and detaches its resources.
func (c *Controller) failLocked(err *fault.Error) teardown {
	c.freezeElapsedLocked()
	next, _ := fsm.Transition(c.state, fsm.EventFail)
	c.state = next
	c.current.State = next
	c.current.LastError = err

	c.logger.Error("session failed",
		"session_id", c.current.ID.String(),
		"generation", c.generation,
		"kind", string(err.Kind),
		"code", err.Code,
		"error", err.Error(),
	)
	return c.detachLocked(TriggerError, err)
}

func (c *Controller) freezeElapsedLocked() {
	if c.state == fsm.StateListening {
		c.current.ElapsedSeconds = c.elapsedLocked()
	}
}

func (c *Controller) elapsedLocked() int {
	if c.listeningAt.IsZero() {
		return 0
	}
	elapsed := int(c.opts.Now().Sub(c.listeningAt) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (c *Controller) withIndicator(fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), indicatorTimeout)
	defer cancel()
	fn(ctx)
}

// Handle serves IPC commands for the owned session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		snap := c.Snapshot()
		return ipc.Response{
			OK:         true,
			State:      string(snap.State),
			Message:    "status",
			Transcript: snap.LastTranscript,
		}
	case "stop":
		state := c.State()
		if !c.Stop() {
			return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("%s: cannot stop from state %s", ErrNotActive, state)}
		}
		return ipc.Response{OK: true, State: string(fsm.StateStopping), Message: "stop requested"}
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}
