package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate shared with every recognizer backend.
	SampleRate = 16000

	fragmentSizeBytes = 640 // 20ms @ 16kHz mono s16
)

// Source opens exclusive PCM streams on an input device.
type Source interface {
	Open(ctx context.Context, device Device, onPCM func([]byte)) (Stream, error)
}

// Stream is one opened input stream. Frames reach the Open callback only
// between Start and Stop.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// PulseSource records 16kHz mono s16le PCM from PulseAudio.
type PulseSource struct {
	MediaName string
}

// Open connects to Pulse and prepares a record stream for device.
func (s PulseSource) Open(_ context.Context, device Device, onPCM func([]byte)) (Stream, error) {
	client, err := connect("mindful")
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	mediaName := s.MediaName
	if mediaName == "" {
		mediaName = "mindful voice capture"
	}

	writer := pulse.NewWriter(writerFunc(func(b []byte) (int, error) {
		if len(b) > 0 {
			onPCM(b)
		}
		return len(b), nil
	}), pulseproto.FormatInt16LE)

	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(fragmentSizeBytes),
		pulse.RecordMediaName(mediaName),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	return &pulseStream{client: client, stream: stream}, nil
}

type pulseStream struct {
	client *pulse.Client
	stream *pulse.RecordStream

	closeOnce sync.Once
}

func (p *pulseStream) Start() error {
	p.stream.Start()
	return nil
}

func (p *pulseStream) Stop() error {
	p.stream.Stop()
	return nil
}

func (p *pulseStream) Close() error {
	p.closeOnce.Do(func() {
		p.stream.Close()
		p.client.Close()
	})
	return nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// PlayPCM plays mono s16 samples through the default Pulse sink and blocks
// until playback drains or ctx is cancelled.
func PlayPCM(ctx context.Context, samples []int16, sampleRate int, mediaName string) error {
	if len(samples) == 0 {
		return nil
	}

	client, err := connect("mindful")
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	// A cancelled ctx ends the reader, which lets Drain return early.
	stream.Start()
	stream.Drain()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play pcm stream: %w", err)
	}
	return nil
}

// DefaultSourceAvailable reports whether Pulse is reachable and exposes a
// default input source.
func DefaultSourceAvailable(_ context.Context) error {
	client, err := connect("mindful")
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.DefaultSource(); err != nil {
		return fmt.Errorf("read default source: %w", err)
	}
	return nil
}
