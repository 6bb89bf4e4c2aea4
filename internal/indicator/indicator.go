// Package indicator surfaces session state through desktop notifications and
// short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mindfulai/mindful/internal/config"
	"github.com/mindfulai/mindful/internal/logging"
)

const (
	dispatchTimeout     = 400 * time.Millisecond
	cueTimeout          = 2 * time.Second
	listeningTimeoutMS  = 300000
	defaultErrorTimeout = 1600
	defaultAppName      = "mindful"
)

// Notifier implements session.Indicator.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	play     Player

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	cues           sync.WaitGroup
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithPlayer replaces the Pulse cue player.
func WithPlayer(play Player) Option {
	return func(n *Notifier) { n.play = play }
}

func New(cfg config.IndicatorConfig, logger *slog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		logger:   logging.OrDiscard(logger),
		messages: indicatorMessagesFromEnv(),
		play:     pulsePlayer,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ShowListening plays the start cue and posts a long-lived notification.
func (n *Notifier) ShowListening(ctx context.Context) {
	n.playCue(cueStart)
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, n.messages.listening, urgencyNormal, listeningTimeoutMS)
	})
}

// ShowError replaces the current notification with text. An empty text uses
// the generic error message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(cueError)
	if !n.cfg.Enable {
		return
	}
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorTimeout
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, text, urgencyCritical, timeout)
	})
}

func (n *Notifier) CueStop(context.Context) {
	n.playCue(cueStop)
}

func (n *Notifier) CueComplete(context.Context) {
	n.playCue(cueComplete)
}

// Hide closes the notification posted by ShowListening, if any.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues finish playing.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

func (n *Notifier) notify(ctx context.Context, text string, urgency byte, timeoutMS int) error {
	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = defaultAppName
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, urgency, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismiss(ctx context.Context) error {
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue queues a cue. Cues play one at a time in the background.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable || n.play == nil {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
		defer cancel()
		if err := emitCue(ctx, n.play, kind); err != nil {
			n.logger.Debug("indicator audio cue failed", "error", err.Error())
		}
	}()
}
