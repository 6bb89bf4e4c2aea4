// Package app dispatches parsed commands to the voice stack.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/capability"
	"github.com/mindfulai/mindful/internal/cli"
	"github.com/mindfulai/mindful/internal/config"
	"github.com/mindfulai/mindful/internal/doctor"
	"github.com/mindfulai/mindful/internal/fault"
	"github.com/mindfulai/mindful/internal/ipc"
	"github.com/mindfulai/mindful/internal/logging"
	"github.com/mindfulai/mindful/internal/playback"
	"github.com/mindfulai/mindful/internal/sentiment"
	"github.com/mindfulai/mindful/internal/session"
	"github.com/mindfulai/mindful/internal/version"
	"github.com/mindfulai/mindful/internal/voice"
)

const (
	binaryName       = "mindful"
	forwardTimeout   = 220 * time.Millisecond
	ownerProbe       = 180 * time.Millisecond
	ownerRetries     = 8
	shutdownTimeout  = 5 * time.Second
	speakingPollRate = 50 * time.Millisecond
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	level, err := config.ParseLogLevel(cfgLoaded.Config.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	logRuntime, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandVoices:
		return r.commandVoices(cfg, logger)
	case cli.CommandSentiment:
		fmt.Fprintln(r.Stdout, sentiment.Classify(parsed.Text))
		return 0
	case cli.CommandSpeak:
		return r.commandSpeak(ctx, cfg, logger, parsed.Text)
	case cli.CommandMic:
		return r.commandMic(ctx, cfg, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandListen:
		return r.commandListen(ctx, cfg, logger, false)
	case cli.CommandToggle:
		return r.commandListen(ctx, cfg, logger, true)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			mark(device.Default),
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func (r Runner) commandVoices(cfg config.Config, logger *slog.Logger) int {
	if !cfg.Speech.Enable {
		fmt.Fprintln(r.Stderr, "error: speech is disabled (speech.enable=false)")
		return 1
	}
	c := buildComponents(wiring{cfg: cfg, logger: logger})
	if !c.player.Available() {
		fmt.Fprintf(r.Stderr, "error: speech command %q not found\n", cfg.Speech.Command.Raw)
		return 1
	}

	voices := c.coord.Voices()
	if len(voices) == 0 {
		fmt.Fprintln(r.Stdout, "no voices found")
		return 1
	}
	preferred := playback.SelectVoice(voices, cfg.Speech.Voice, cfg.Recognition.Language)
	for _, v := range voices {
		selected := preferred != nil && preferred.ID == v.ID
		fmt.Fprintf(r.Stdout, "%s id=%s | name=%q | language=%s | gender=%s\n",
			mark(selected), v.ID, v.Name, v.Language, v.Gender)
	}
	return 0
}

func (r Runner) commandSpeak(ctx context.Context, cfg config.Config, logger *slog.Logger, text string) int {
	if !cfg.Speech.Enable {
		fmt.Fprintln(r.Stderr, "error: speech is disabled (speech.enable=false)")
		return 1
	}
	c := buildComponents(wiring{cfg: cfg, logger: logger})
	if !c.coord.Speak(text, voice.SpeakOptions{}) {
		fmt.Fprintln(r.Stderr, "error: speech synthesis unavailable")
		return 1
	}

	ticker := time.NewTicker(speakingPollRate)
	defer ticker.Stop()
	for {
		select {
		case <-c.spoken:
			return 0
		case <-ctx.Done():
			c.coord.StopSpeaking()
			fmt.Fprintln(r.Stderr, "error: interrupted")
			return 1
		case <-ticker.C:
			if c.player.Speaking() {
				continue
			}
			// Playback finished; OnDone runs only when it succeeded.
			select {
			case <-c.spoken:
				return 0
			case <-time.After(4 * speakingPollRate):
				fmt.Fprintln(r.Stderr, "error: speech playback failed (see log)")
				return 1
			}
		}
	}
}

func (r Runner) commandMic(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	c := buildComponents(wiring{cfg: cfg, logger: logger})

	permission := c.coord.MicrophonePermission(ctx)
	fmt.Fprintf(r.Stdout, "permission: %s\n", permission)
	if permission != capability.PermissionGranted {
		return 1
	}
	if err := c.coord.TestMicrophone(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", describe(err))
		return 1
	}
	fmt.Fprintln(r.Stdout, "microphone: ok")
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	fmt.Fprintln(r.Stdout, resp.State)
	if resp.Transcript != "" {
		fmt.Fprintf(r.Stdout, "transcript: %s\n", resp.Transcript)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active mindful session")
		return 1
	}
	return r.printForwarded(resp, err)
}

func (r Runner) printForwarded(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandListen owns one capture session and serves IPC until it finishes.
// With toggle set, a running owner is asked to stop instead.
func (r Runner) commandListen(ctx context.Context, cfg config.Config, logger *slog.Logger, toggle bool) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if toggle {
		if resp, handled, err := tryForward(ctx, socketPath, "stop"); handled {
			return r.printForwarded(resp, err)
		}
	}

	listener, err := ipc.Acquire(ctx, socketPath, ownerProbe, ownerRetries, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) && toggle {
			resp, _, forwardErr := tryForward(ctx, socketPath, "stop")
			return r.printForwarded(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	finished := make(chan session.Result, 1)
	c := buildComponents(wiring{
		cfg:    cfg,
		logger: logger,
		out:    r.Stdout,
		onFinished: func(result session.Result) {
			select {
			case finished <- result:
			default:
			}
		},
		stopAfterCommit: true,
	})

	onError := func(err *fault.Error) {
		if err.Kind.Recoverable() {
			fmt.Fprintf(r.Stderr, "warning: %s\n", err.Kind.Guidance())
		}
	}
	if !c.coord.Start(nil, onError) {
		fmt.Fprintf(r.Stderr, "error: %v (run `%s doctor`)\n", session.ErrUnsupported, binaryName)
		return 1
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, c.coord)
	}()

	var result session.Result
	select {
	case result = <-finished:
	case <-ctx.Done():
		c.coord.Stop()
		select {
		case result = <-finished:
		case <-time.After(shutdownTimeout):
			fmt.Fprintln(r.Stderr, "error: timed out waiting for session cleanup")
			return 1
		}
	}

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	c.indicator.Wait()

	if result.CleanupErr != nil {
		fmt.Fprintf(r.Stderr, "warning: cleanup incomplete: %v\n", result.CleanupErr)
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", describe(result.Err))
		return 1
	}
	return 0
}

// describe renders classified failures as user guidance.
func describe(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fmt.Sprintf("%s (%s)", fe.Kind.Guidance(), fe.Code)
	}
	return err.Error()
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.NoOwner(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func mark(on bool) string {
	if on {
		return "*"
	}
	return " "
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
