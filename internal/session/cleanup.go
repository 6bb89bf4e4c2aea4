package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/fault"
	"github.com/mindfulai/mindful/internal/fsm"
)

// teardown holds the resources detached from one session for cleanup.
type teardown struct {
	generation  uint64
	sessionID   uuid.UUID
	trigger     Trigger
	err         *fault.Error
	timer       Timer
	cancel      context.CancelFunc
	recognizing bool
	capturing   bool
	handle      *audio.Handle
	onError     ErrorFunc
}

// detachLocked hands the session's resources to a teardown. Only the caller
// that moved the session out of an active state may call it, so each
// generation yields exactly one teardown.
func (c *Controller) detachLocked(trigger Trigger, err *fault.Error) teardown {
	job := teardown{
		generation:  c.generation,
		sessionID:   c.current.ID,
		trigger:     trigger,
		err:         err,
		timer:       c.timer,
		cancel:      c.cancel,
		recognizing: c.recognizing,
		capturing:   c.capturing,
		handle:      c.handle,
		onError:     c.onError,
	}
	c.timer = nil
	c.cancel = nil
	c.recognizing = false
	c.capturing = false
	return job
}

// cleanup runs the fixed teardown sequence. Every step runs even when an
// earlier one fails or panics.
func (c *Controller) cleanup(job teardown) {
	var errs []error
	step := func(name string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				errs = append(errs, fmt.Errorf("%s: panic: %v", name, r))
			}
		}()
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("cancel timer", func() error {
		if job.timer != nil {
			job.timer.Stop()
		}
		return nil
	})
	step("stop recognizer", func() error {
		if job.recognizing {
			c.opts.Recognizer.Stop()
		}
		return nil
	})
	if job.cancel != nil {
		job.cancel()
	}

	var artifact audio.Artifact
	step("stop capture", func() error {
		if !job.capturing {
			return nil
		}
		stopErr := c.opts.Microphone.Stop()
		finalized, err := c.opts.Microphone.Finalize()
		if err == nil {
			artifact = finalized
		}
		return errors.Join(stopErr, err)
	})
	step("release microphone", func() error {
		if job.handle == nil {
			return nil
		}
		return c.opts.Microphone.Release(job.handle)
	})
	cleanupErr := errors.Join(errs...)

	c.mu.Lock()
	if job.generation != c.generation {
		c.mu.Unlock()
		c.logger.Warn("stale session cleanup", "session_id", job.sessionID.String(), "generation", job.generation)
		return
	}
	result := Result{
		SessionID:      c.current.ID,
		Trigger:        job.trigger,
		StartedAt:      c.current.StartedAt,
		FinishedAt:     c.opts.Now(),
		ElapsedSeconds: c.current.ElapsedSeconds,
		Transcript:     c.current.LastTranscript,
		Confidence:     c.current.LastConfidence,
		Err:            job.err,
		Artifact:       artifact,
		CleanupErr:     cleanupErr,
	}
	if job.handle != nil {
		result.AudioDevice = job.handle.Device.Description
	}

	event := fsm.EventCleaned
	if c.state == fsm.StateError {
		event = fsm.EventReset
	}
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Error("cleanup transition rejected", "state", string(c.state), "error", err.Error())
		next = fsm.StateIdle
	}
	c.state = next
	c.current = RecordingSession{State: next}
	c.handle = nil
	c.listeningAt = time.Time{}
	c.onResult = nil
	c.onError = nil
	c.last = result
	c.hasLast = true
	c.mu.Unlock()

	logSessionResult(c, result)

	if job.err != nil {
		c.withIndicator(func(ctx context.Context) { c.indicator.ShowError(ctx, job.err.Kind.Guidance()) })
		if job.onError != nil {
			job.onError(job.err)
		}
	} else {
		c.withIndicator(c.indicator.CueStop)
		c.withIndicator(c.indicator.Hide)
	}
	if c.opts.OnFinished != nil {
		c.opts.OnFinished(result)
	}
}

func logSessionResult(c *Controller, result Result) {
	fields := []any{
		"session_id", result.SessionID.String(),
		"trigger", string(result.Trigger),
		"elapsed_seconds", result.ElapsedSeconds,
		"transcript_length", len(result.Transcript),
		"bytes", result.Artifact.Bytes,
		"chunks", result.Artifact.Chunks,
	}
	if result.CleanupErr != nil {
		c.logger.Warn("session cleanup incomplete", append(fields, "error", result.CleanupErr.Error())...)
	}
	if result.Err != nil {
		c.logger.Error("session ended with error", append(fields, "kind", string(result.Err.Kind))...)
		return
	}
	c.logger.Info("session complete", fields...)
}
