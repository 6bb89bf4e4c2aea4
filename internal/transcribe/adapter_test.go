package transcribe

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mindfulai/mindful/internal/fault"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recvItem struct {
	result Result
	err    error
}

type fakeEngine struct {
	unavailable bool
	openErr     error
	// detached streams ignore the pass context, like a network connection.
	detached bool

	mu      sync.Mutex
	streams []*fakeStream
	opts    []Options
}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) Available() bool { return !e.unavailable }

func (e *fakeEngine) Open(ctx context.Context, opts Options) (Stream, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	if e.detached {
		ctx = context.Background()
	}
	stream := &fakeStream{
		ctx:     ctx,
		results: make(chan recvItem, 16),
		closed:  make(chan struct{}),
	}
	e.mu.Lock()
	e.streams = append(e.streams, stream)
	e.opts = append(e.opts, opts)
	e.mu.Unlock()
	return stream, nil
}

func (e *fakeEngine) waitStream(t *testing.T) *fakeStream {
	t.Helper()
	var stream *fakeStream
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		if len(e.streams) == 0 {
			return false
		}
		stream = e.streams[len(e.streams)-1]
		return true
	}, time.Second, time.Millisecond)
	return stream
}

type fakeStream struct {
	ctx     context.Context
	results chan recvItem

	mu   sync.Mutex
	sent int

	closeSends atomic.Int32
	closeOnce  sync.Once
	closed     chan struct{}
}

func (s *fakeStream) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent += len(pcm)
	return nil
}

func (s *fakeStream) CloseSend() error {
	if s.closeSends.Add(1) == 1 {
		close(s.results)
	}
	return nil
}

func (s *fakeStream) Recv() (Result, error) {
	select {
	case <-s.ctx.Done():
		return Result{}, s.ctx.Err()
	case <-s.closed:
		return Result{}, errors.New("stream closed")
	case item, ok := <-s.results:
		if !ok {
			return Result{}, io.EOF
		}
		return item.result, item.err
	}
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) bytesSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) kinds() []EventKind {
	var kinds []EventKind
	for _, ev := range r.snapshot() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func newTestAdapter(engine Engine, interim bool) *Adapter {
	return NewAdapter(AdapterOptions{
		Engine:             engine,
		InterimResults:     interim,
		SupportedLanguages: []string{"en-US", "en-GB"},
	})
}

func TestStartRejectsUnusableEngineOrLocale(t *testing.T) {
	feed := make(chan []byte)
	rec := &recorder{}

	require.False(t, newTestAdapter(nil, false).Start(context.Background(), "en-US", feed, rec.emit))
	require.False(t, newTestAdapter(&fakeEngine{unavailable: true}, false).Start(context.Background(), "en-US", feed, rec.emit))

	adapter := newTestAdapter(&fakeEngine{}, false)
	require.False(t, adapter.Start(context.Background(), "not a tag!", feed, rec.emit))
	require.False(t, adapter.Start(context.Background(), "ja-JP", feed, rec.emit))
	require.False(t, adapter.Start(context.Background(), "en-US", feed, nil))
	require.Empty(t, rec.snapshot())
}

func TestSupportsLanguageWithoutAllowList(t *testing.T) {
	adapter := NewAdapter(AdapterOptions{Engine: &fakeEngine{}})
	require.True(t, adapter.SupportsLanguage("fr-FR"))
	require.False(t, adapter.SupportsLanguage(""))
}

func TestInterimThenFinalEndsPass(t *testing.T) {
	engine := &fakeEngine{}
	adapter := newTestAdapter(engine, true)
	rec := &recorder{}

	require.True(t, adapter.Start(context.Background(), "en-GB", make(chan []byte), rec.emit))
	stream := engine.waitStream(t)

	stream.results <- recvItem{result: Result{Text: "i feel", Confidence: 0.4}}
	stream.results <- recvItem{result: Result{Text: "i feel  calm today", Confidence: 0.92, IsFinal: true}}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, time.Second, time.Millisecond)
	events := rec.snapshot()
	require.Equal(t, []EventKind{EventResult, EventResult, EventEnded}, rec.kinds())
	require.False(t, events[0].Result.IsFinal)
	require.Equal(t, "I feel calm today", events[1].Result.Text)
	require.InDelta(t, 0.92, events[1].Result.Confidence, 1e-9)
	require.True(t, events[1].Result.IsFinal)

	require.Eventually(t, func() bool { return !adapter.Active() }, time.Second, time.Millisecond)
	<-stream.closed

	engine.mu.Lock()
	require.Equal(t, "en-GB", engine.opts[0].Language)
	require.Equal(t, 16000, engine.opts[0].SampleRate)
	engine.mu.Unlock()
}

func TestInterimResultsDroppedWhenDisabled(t *testing.T) {
	engine := &fakeEngine{}
	adapter := newTestAdapter(engine, false)
	rec := &recorder{}

	require.True(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))
	stream := engine.waitStream(t)
	stream.results <- recvItem{result: Result{Text: "partial"}}
	stream.results <- recvItem{result: Result{Text: "complete", IsFinal: true}}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, time.Millisecond)
	require.Equal(t, []EventKind{EventResult, EventEnded}, rec.kinds())
	require.Equal(t, "Complete", rec.snapshot()[0].Result.Text)
}

func TestEngineErrorIsClassifiedAndEndsOnce(t *testing.T) {
	engine := &fakeEngine{}
	adapter := newTestAdapter(engine, false)
	rec := &recorder{}

	require.True(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))
	stream := engine.waitStream(t)
	stream.results <- recvItem{err: status.Error(codes.Unavailable, "recognizer down")}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, time.Millisecond)
	events := rec.snapshot()
	require.Equal(t, EventError, events[0].Kind)
	require.Equal(t, fault.NetworkError, events[0].Err.Kind)
	require.Equal(t, EventEnded, events[1].Kind)

	<-stream.closed
	require.Len(t, rec.snapshot(), 2)
}

func TestOpenFailureReportsErrorThenEnded(t *testing.T) {
	engine := &fakeEngine{openErr: status.Error(codes.PermissionDenied, "bad key")}
	adapter := newTestAdapter(engine, false)
	rec := &recorder{}

	require.True(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, time.Millisecond)
	events := rec.snapshot()
	require.Equal(t, fault.ServiceNotAllowed, events[0].Err.Kind)
	require.Equal(t, EventEnded, events[1].Kind)
}

func TestStopSuppressesLaterEvents(t *testing.T) {
	engine := &fakeEngine{}
	adapter := newTestAdapter(engine, true)
	rec := &recorder{}

	require.True(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))
	stream := engine.waitStream(t)

	adapter.Stop()
	require.False(t, adapter.Active())
	stream.results <- recvItem{result: Result{Text: "late", IsFinal: true}}

	<-stream.closed
	require.Empty(t, rec.snapshot())

	// Stop is idempotent.
	adapter.Stop()
}

func TestStopClosesDetachedStream(t *testing.T) {
	engine := &fakeEngine{detached: true}
	adapter := NewAdapter(AdapterOptions{Engine: engine})
	rec := &recorder{}

	require.True(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))
	stream := engine.waitStream(t)

	adapter.Stop()
	select {
	case <-stream.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream left open after Stop")
	}
	require.Empty(t, rec.snapshot())
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	engine := &fakeEngine{}
	adapter := newTestAdapter(engine, false)
	rec := &recorder{}

	require.True(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))
	require.False(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))

	adapter.Stop()
	require.True(t, adapter.Start(context.Background(), "en-US", make(chan []byte), rec.emit))
	adapter.Stop()
}

func TestFeedCloseFlushesAndEnds(t *testing.T) {
	engine := &fakeEngine{}
	adapter := newTestAdapter(engine, false)
	rec := &recorder{}
	feed := make(chan []byte, 4)

	require.True(t, adapter.Start(context.Background(), "en-US", feed, rec.emit))
	stream := engine.waitStream(t)

	feed <- make([]byte, 640)
	feed <- make([]byte, 640)
	close(feed)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, []EventKind{EventEnded}, rec.kinds())
	require.Equal(t, 1280, stream.bytesSent())
	require.Equal(t, int32(1), stream.closeSends.Load())
}

func TestSilenceWatchdogReportsRecoverableNoSpeech(t *testing.T) {
	engine := &fakeEngine{}
	adapter := NewAdapter(AdapterOptions{
		Engine:          engine,
		NoSpeechTimeout: 30 * time.Millisecond,
	})
	rec := &recorder{}
	feed := make(chan []byte, 8)

	require.True(t, adapter.Start(context.Background(), "en-US", feed, rec.emit))
	engine.waitStream(t)
	feed <- make([]byte, 640)

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, time.Second, time.Millisecond)
	first := rec.snapshot()[0]
	require.Equal(t, EventError, first.Kind)
	require.Equal(t, fault.NoSpeechDetected, first.Err.Kind)
	require.True(t, first.Err.Kind.Recoverable())
	require.True(t, errors.Is(first.Err, ErrNoSpeech))
	require.True(t, adapter.Active())

	adapter.Stop()
	for _, ev := range rec.snapshot() {
		require.NotEqual(t, EventEnded, ev.Kind)
	}
}

func TestSpeechEnergyResetsWatchdog(t *testing.T) {
	engine := &fakeEngine{}
	adapter := NewAdapter(AdapterOptions{
		Engine:          engine,
		NoSpeechTimeout: 150 * time.Millisecond,
	})
	rec := &recorder{}
	feed := make(chan []byte, 64)

	require.True(t, adapter.Start(context.Background(), "en-US", feed, rec.emit))
	engine.waitStream(t)

	loud := toneFrame(8000)
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		feed <- loud
		time.Sleep(10 * time.Millisecond)
	}
	require.Empty(t, rec.snapshot())
	adapter.Stop()
}

func TestRMS(t *testing.T) {
	require.Zero(t, rms(nil))
	require.Zero(t, rms(make([]byte, 64)))
	require.InDelta(t, 8000, rms(toneFrame(8000)), 1e-9)
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "result", EventResult.String())
	require.Equal(t, "error", EventError.String())
	require.Equal(t, "ended", EventEnded.String())
	require.Equal(t, "unknown", EventKind(0).String())
}

// toneFrame returns 20ms of a square wave at the given amplitude.
func toneFrame(amplitude int16) []byte {
	frame := make([]byte, 640)
	for i := 0; i < 320; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(v))
	}
	return frame
}
