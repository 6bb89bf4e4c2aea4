package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mindfulai/mindful/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
	require.False(t, strings.HasSuffix(text, "\n"))
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv("TEST_DOCTOR_ENV", func(v string) bool { return v != "" }, "looks good", "unexpected")
	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)

	t.Setenv("TEST_DOCTOR_ENV", "")
	check = checkEnv("TEST_DOCTOR_ENV", func(v string) bool { return v != "" }, "looks good", "unexpected")
	require.False(t, check.Pass)
	require.Equal(t, "unexpected", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "output.clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFoundAndMissing(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")

	check = checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-espeak")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-espeak", "-v", "en"}, "speech.command")
	require.True(t, check.Pass)
	require.Equal(t, "speech.command", check.Name)
	require.Contains(t, check.Message, "speech.command command is available")
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestCheckGRPCReady(t *testing.T) {
	check := checkGRPCReady(context.Background(), fakePinger{}, "127.0.0.1:50051")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "ready at 127.0.0.1:50051")

	check = checkGRPCReady(context.Background(), fakePinger{err: errors.New("wait for recognizer readiness: deadline exceeded")}, "127.0.0.1:50051")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "deadline exceeded")

	check = checkGRPCReady(context.Background(), fakePinger{}, " ")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "recognition.grpc is empty")
}

func TestCheckRecognizerWebsocket(t *testing.T) {
	t.Setenv("MINDFUL_TEST_KEY", "secret")

	cfg := config.Default().Recognition
	cfg.Backend = config.BackendWebsocket
	cfg.APIKeyEnv = "MINDFUL_TEST_KEY"

	checks := checkRecognizer(context.Background(), cfg)
	require.Len(t, checks, 2)
	require.True(t, checks[0].Pass, checks[0].Message)
	require.True(t, checks[1].Pass, checks[1].Message)

	cfg.WebsocketURL = "ftp://example.com/listen"
	t.Setenv("MINDFUL_TEST_KEY", "")
	checks = checkRecognizer(context.Background(), cfg)
	require.False(t, checks[0].Pass)
	require.Contains(t, checks[0].Message, "scheme must be ws or wss")
	require.False(t, checks[1].Pass)
	require.Contains(t, checks[1].Message, "MINDFUL_TEST_KEY is not set")
}

func TestCheckAPIKeyRequiresEnvName(t *testing.T) {
	check := checkAPIKey("", "")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "api_key_env is empty")
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
}

func TestRunReportsOptionalCommandsOnlyWhenEnabled(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.Default()
	cfg.Recognition.Backend = config.BackendWebsocket
	cfg.Speech.Enable = false
	cfg.Output.Clipboard = true
	cfg.Indicator.Enable = false

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.False(t, report.OK())

	names := map[string]bool{}
	for _, check := range report.Checks {
		names[check.Name] = true
	}
	require.True(t, names["config"])
	require.True(t, names["XDG_RUNTIME_DIR"])
	require.True(t, names["audio.device"])
	require.True(t, names["recognition.websocket_url"])
	require.True(t, names["output.clipboard_cmd"])
	require.False(t, names["speech.command"])
	require.False(t, names["busctl"])
	require.Contains(t, report.String(), "using defaults")
}
