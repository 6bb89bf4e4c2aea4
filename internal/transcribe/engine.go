// Package transcribe turns a live PCM feed into recognition events.
package transcribe

import (
	"context"

	"github.com/mindfulai/mindful/internal/config"
)

// Result is one recognition hypothesis.
type Result struct {
	Text       string
	Confidence float64
	IsFinal    bool
}

// Options configures one recognition stream.
type Options struct {
	Language             string
	Model                string
	SampleRate           int
	InterimResults       bool
	AutomaticPunctuation bool
	Phrases              []config.SpeechPhrase
}

// Engine is a streaming speech recognizer backend.
type Engine interface {
	Name() string
	// Available reports whether the engine is configured well enough to try.
	Available() bool
	Open(ctx context.Context, opts Options) (Stream, error)
}

// Stream is one open recognition stream. Recv returns io.EOF once the
// engine has delivered every result for the audio it received.
type Stream interface {
	SendAudio(pcm []byte) error
	CloseSend() error
	Recv() (Result, error)
	Close() error
}
