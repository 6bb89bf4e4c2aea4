// Package output delivers final transcripts: a JSON line for the caller and
// an optional clipboard copy.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mindfulai/mindful/internal/config"
	"github.com/mindfulai/mindful/internal/logging"
	"github.com/mindfulai/mindful/internal/sentiment"
	"github.com/mindfulai/mindful/internal/session"
	"github.com/mindfulai/mindful/internal/transcript"
)

const clipboardTimeout = 2 * time.Second

// Record is one delivered transcript.
type Record struct {
	SessionID  string  `json:"session_id"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Sentiment  string  `json:"sentiment"`
}

// Committer writes transcript records to w and optionally the clipboard.
type Committer struct {
	config config.OutputConfig
	logger *slog.Logger

	mu sync.Mutex
	w  io.Writer
}

// NewCommitter constructs a transcript committer from runtime config.
func NewCommitter(cfg config.OutputConfig, w io.Writer, logger *slog.Logger) *Committer {
	if w == nil {
		w = io.Discard
	}
	return &Committer{config: cfg, w: w, logger: logging.OrDiscard(logger)}
}

// Commit implements session.Committer. Blank transcripts are skipped.
func (c *Committer) Commit(ctx context.Context, t session.Transcript) error {
	text := transcript.Normalize(t.Text, transcript.Options{})
	if text == "" {
		return nil
	}

	record := Record{
		SessionID:  t.SessionID.String(),
		Transcript: text,
		Confidence: t.Confidence,
		Sentiment:  string(sentiment.Classify(text)),
	}
	if err := c.writeRecord(record); err != nil {
		return err
	}

	if !c.config.Clipboard {
		return nil
	}
	if c.config.TrailingSpace {
		text += " "
	}
	clipboardCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if err := runCommandWithInput(clipboardCtx, c.config.ClipboardCmd.Argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logger.Debug("transcript copied to clipboard", "session_id", record.SessionID)
	return nil
}

func (c *Committer) writeRecord(record Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode transcript record: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write transcript record: %w", err)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("run %s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}
