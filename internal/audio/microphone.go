package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mindfulai/mindful/internal/fault"
	"github.com/mindfulai/mindful/internal/logging"
)

var (
	ErrBusy          = errors.New("microphone already acquired")
	ErrNoDevices     = errors.New("no audio input devices found")
	ErrNotCapturing  = errors.New("no capture to finalize")
	ErrInvalidHandle = errors.New("handle does not own the microphone")
	ErrCapturing     = errors.New("capture already running")
)

const (
	defaultChunkInterval = time.Second
	feedBuffer           = 256
)

// Options configures a Microphone.
type Options struct {
	Input         string
	Fallback      string
	ChunkInterval time.Duration
	SampleRate    int

	Source  Source
	Resolve func(ctx context.Context, input string, fallback string) (Selection, error)
	Logger  *slog.Logger
}

// Handle is the exclusive ownership token of an acquired microphone.
type Handle struct {
	ID         uuid.UUID
	Device     Device
	Warning    string
	AcquiredAt time.Time

	released atomic.Bool
}

// Released reports whether the handle has been given back.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// Microphone owns one input device at a time and records it in chunks.
type Microphone struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	acquiring bool
	handle    *Handle
	stream    Stream

	capturing bool
	stopped   bool
	finalized bool
	pending   []byte
	chunks    []Chunk
	nextSeq   int
	feed      chan []byte
	dropped   int

	tickStop chan struct{}
	tickDone chan struct{}
}

// NewMicrophone builds a microphone over Pulse unless opts overrides the source.
func NewMicrophone(opts Options) *Microphone {
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = defaultChunkInterval
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = SampleRate
	}
	if opts.Source == nil {
		opts.Source = PulseSource{}
	}
	if opts.Resolve == nil {
		opts.Resolve = SelectDevice
	}
	return &Microphone{opts: opts, logger: logging.OrDiscard(opts.Logger)}
}

// Acquire resolves the input device and opens it exclusively.
func (m *Microphone) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	if m.acquiring || m.handle != nil {
		m.mu.Unlock()
		return nil, fault.New(fault.ResourceUnavailable, "busy", ErrBusy)
	}
	m.acquiring = true
	m.mu.Unlock()

	handle, stream, err := m.open(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquiring = false
	if err != nil {
		return nil, err
	}
	m.handle = handle
	m.stream = stream
	m.resetCaptureLocked()

	m.logger.Debug("microphone acquired",
		"session_id", handle.ID.String(),
		"device", handle.Device.ID,
	)
	return handle, nil
}

func (m *Microphone) open(ctx context.Context) (*Handle, Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	selection, err := m.opts.Resolve(ctx, m.opts.Input, m.opts.Fallback)
	if err != nil {
		return nil, nil, acquireFault("select", err)
	}
	if selection.Warning != "" {
		m.logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	stream, err := m.opts.Source.Open(ctx, selection.Device, m.onPCM)
	if err != nil {
		return nil, nil, acquireFault("open", fmt.Errorf("open %q: %w", selection.Device.ID, err))
	}

	return &Handle{
		ID:         uuid.New(),
		Device:     selection.Device,
		Warning:    selection.Warning,
		AcquiredAt: time.Now(),
	}, stream, nil
}

// acquireFault keeps permission failures distinct and reports anything else
// as an unavailable device.
func acquireFault(code string, err error) error {
	var classified *fault.Error
	if errors.As(err, &classified) {
		return classified
	}
	if fault.Classify(err) == fault.PermissionDenied {
		return fault.New(fault.PermissionDenied, code, err)
	}
	return fault.New(fault.ResourceUnavailable, code, err)
}

// BeginCapture starts recording on an acquired handle.
func (m *Microphone) BeginCapture(h *Handle) error {
	m.mu.Lock()
	if h == nil || h.Released() || m.handle != h {
		m.mu.Unlock()
		return ErrInvalidHandle
	}
	if m.capturing && !m.stopped {
		m.mu.Unlock()
		return ErrCapturing
	}
	stream := m.stream
	m.mu.Unlock()

	if err := stream.Start(); err != nil {
		return fault.New(fault.AudioCaptureError, "start", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCaptureLocked()
	m.capturing = true
	m.feed = make(chan []byte, feedBuffer)
	m.tickStop = make(chan struct{})
	m.tickDone = make(chan struct{})
	go m.tick(m.tickStop, m.tickDone)

	m.logger.Debug("capture started", "session_id", h.ID.String())
	return nil
}

// Feed returns the live PCM frames of the current capture. It is closed by Stop.
func (m *Microphone) Feed() <-chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feed
}

// Stop halts recording, flushes pending PCM into a final chunk, and closes
// the live feed. Stopping an idle or stopped capture is a no-op.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	if !m.capturing || m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	stream := m.stream
	tickStop, tickDone := m.tickStop, m.tickDone
	m.mu.Unlock()

	close(tickStop)
	<-tickDone

	var err error
	if stream != nil {
		if stopErr := stream.Stop(); stopErr != nil {
			err = fault.New(fault.AudioCaptureError, "stop", stopErr)
		}
	}

	m.mu.Lock()
	m.flushLocked()
	close(m.feed)
	chunks, dropped := len(m.chunks), m.dropped
	m.mu.Unlock()

	m.logger.Debug("capture stopped", "chunks", chunks, "dropped_frames", dropped)
	return err
}

// Finalize concatenates the recorded chunks into one WAV artifact and clears
// them. It is valid while capturing or once after Stop.
func (m *Microphone) Finalize() (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.capturing || m.finalized {
		return Artifact{}, ErrNotCapturing
	}
	m.flushLocked()

	size := 0
	for _, chunk := range m.chunks {
		size += len(chunk.Data)
	}
	pcm := make([]byte, 0, size)
	for _, chunk := range m.chunks {
		pcm = append(pcm, chunk.Data...)
	}

	data, err := EncodeWAV(pcm, m.opts.SampleRate)
	if err != nil {
		return Artifact{}, fault.New(fault.AudioCaptureError, "encode", err)
	}

	artifact := Artifact{
		MIMEType:   WAVMIMEType,
		Data:       data,
		Chunks:     len(m.chunks),
		Bytes:      len(pcm),
		Duration:   pcmDuration(len(pcm), m.opts.SampleRate),
		SampleRate: m.opts.SampleRate,
	}
	m.chunks = nil
	if m.stopped {
		m.finalized = true
	}
	return artifact, nil
}

// Release gives the device back. A second release of the same handle, or a
// release of a handle that never captured, is safe.
func (m *Microphone) Release(h *Handle) error {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	owned := m.handle == h
	m.mu.Unlock()
	if !owned {
		return nil
	}

	stopErr := m.Stop()

	m.mu.Lock()
	stream := m.stream
	m.stream = nil
	m.handle = nil
	m.capturing = false
	m.resetCaptureLocked()
	m.mu.Unlock()

	var closeErr error
	if stream != nil {
		if err := stream.Close(); err != nil {
			closeErr = fmt.Errorf("close input stream: %w", err)
		}
	}

	m.logger.Debug("microphone released", "session_id", h.ID.String())
	return errors.Join(stopErr, closeErr)
}

// Chunks returns a snapshot of the chunks recorded since the last finalize.
func (m *Microphone) Chunks() []Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out
}

// Held reports whether a handle currently owns the microphone.
func (m *Microphone) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

func (m *Microphone) onPCM(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.capturing || m.stopped {
		return
	}

	m.pending = append(m.pending, frame...)

	live := make([]byte, len(frame))
	copy(live, frame)
	select {
	case m.feed <- live:
	default:
		m.dropped++
	}
}

func (m *Microphone) tick(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.opts.ChunkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			m.flushLocked()
			m.mu.Unlock()
		}
	}
}

func (m *Microphone) flushLocked() {
	if len(m.pending) == 0 {
		return
	}
	m.chunks = append(m.chunks, Chunk{Seq: m.nextSeq, Data: m.pending})
	m.nextSeq++
	m.pending = nil
}

func (m *Microphone) resetCaptureLocked() {
	m.stopped = false
	m.finalized = false
	m.pending = nil
	m.chunks = nil
	m.nextSeq = 0
	m.dropped = 0
}
