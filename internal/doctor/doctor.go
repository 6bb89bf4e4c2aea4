// Package doctor runs readiness diagnostics for config, audio, the speech
// recognizer, and the helper binaries the voice features shell out to.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mindfulai/mindful/internal/audio"
	"github.com/mindfulai/mindful/internal/config"
	"github.com/mindfulai/mindful/internal/speechgrpc"
	"github.com/mindfulai/mindful/internal/speechws"
)

const recognizerCheckTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment, config, and runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{configCheck(cfg)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "session socket directory available", "XDG_RUNTIME_DIR is not set"))

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkRecognizer(ctx, cfg.Config.Recognition)...)

	if cfg.Config.Speech.Enable {
		checks = append(checks, checkCommand(cfg.Config.Speech.Command.Argv, "speech.command"))
	}
	if cfg.Config.Output.Clipboard {
		checks = append(checks, checkCommand(cfg.Config.Output.ClipboardCmd.Argv, "output.clipboard_cmd"))
	}
	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	return Report{Checks: checks}
}

func configCheck(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("using defaults (%q not found)", cfg.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
	check.Name = name
	return check
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

type pinger interface {
	Ping(ctx context.Context) error
}

type validator interface {
	Validate() error
}

func checkRecognizer(ctx context.Context, cfg config.RecognitionConfig) []Check {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	dialTimeout := time.Duration(cfg.DialTimeoutMS) * time.Millisecond

	switch cfg.Backend {
	case config.BackendWebsocket:
		engine := speechws.New(speechws.Config{URL: cfg.WebsocketURL, APIKey: apiKey, DialTimeout: dialTimeout})
		return []Check{
			checkWebsocketURL(engine, cfg.WebsocketURL),
			checkAPIKey(cfg.APIKeyEnv, apiKey),
		}
	default:
		engine := speechgrpc.New(speechgrpc.Config{Endpoint: cfg.GRPC, APIKey: apiKey, DialTimeout: dialTimeout})
		return []Check{checkGRPCReady(ctx, engine, cfg.GRPC)}
	}
}

// checkGRPCReady dials the recognizer and waits for the channel to become ready.
func checkGRPCReady(ctx context.Context, engine pinger, endpoint string) Check {
	if strings.TrimSpace(endpoint) == "" {
		return Check{Name: "recognition.grpc", Pass: false, Message: "recognition.grpc is empty"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, recognizerCheckTimeout)
	defer cancel()
	if err := engine.Ping(pingCtx); err != nil {
		return Check{Name: "recognition.grpc", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognition.grpc", Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}

func checkWebsocketURL(engine validator, url string) Check {
	if err := engine.Validate(); err != nil {
		return Check{Name: "recognition.websocket_url", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognition.websocket_url", Pass: true, Message: fmt.Sprintf("using %s", url)}
}

func checkAPIKey(env string, value string) Check {
	if strings.TrimSpace(env) == "" {
		return Check{Name: "recognition.api_key_env", Pass: false, Message: "recognition.api_key_env is empty"}
	}
	if strings.TrimSpace(value) == "" {
		return Check{Name: env, Pass: false, Message: fmt.Sprintf("%s is not set", env)}
	}
	return Check{Name: env, Pass: true, Message: "API key present"}
}
