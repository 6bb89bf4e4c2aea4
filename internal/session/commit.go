package session

import (
	"context"

	"github.com/google/uuid"
)

// Transcript is a final recognition result handed to the transcript sink.
type Transcript struct {
	SessionID  uuid.UUID
	Text       string
	Confidence float64
}

// Committer receives final transcripts, e.g. a message composer or clipboard.
type Committer interface {
	Commit(context.Context, Transcript) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(context.Context, Transcript) error

func (f CommitFunc) Commit(ctx context.Context, transcript Transcript) error {
	return f(ctx, transcript)
}
