package session

import (
	"context"
	"errors"

	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/transcribe"
)

var (
	// ErrUnsupported indicates the host lacks recognition, recording, or media device access.
	ErrUnsupported = errors.New("voice capture is not supported on this host")
	// ErrNotActive indicates stop was requested with no session to stop.
	ErrNotActive = errors.New("no active session")
)

// Microphone is the capture adapter surface driven by the controller.
type Microphone interface {
	Acquire(ctx context.Context) (*audio.Handle, error)
	BeginCapture(h *audio.Handle) error
	Feed() <-chan []byte
	Stop() error
	Finalize() (audio.Artifact, error)
	Release(h *audio.Handle) error
}

// Recognizer is the transcription adapter surface driven by the controller.
// emit may be called from any goroutine; Stop must suppress later events.
type Recognizer interface {
	Start(ctx context.Context, locale string, feed <-chan []byte, emit func(transcribe.Event)) bool
	Stop()
}
