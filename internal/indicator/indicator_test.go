package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mindfulai/mindful/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNotifierPostsReplacesAndDismisses(t *testing.T) {
	argsFile := installBusctlStub(t, `echo "u 42"`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false
	cfg.DesktopAppName = "mindful-test"

	notify := New(cfg, nil)
	notify.ShowListening(context.Background())
	notify.ShowError(context.Background(), "")
	notify.Hide(context.Background())
	notify.Hide(context.Background())

	lines := readLines(t, argsFile)
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Notify susssasa{sv}i mindful-test 0 audio-input-microphone Listening…")
	require.True(t, strings.HasSuffix(lines[0], "urgency y 1 300000"))
	require.Contains(t, lines[1], "mindful-test 42 audio-input-microphone Voice input error")
	require.True(t, strings.HasSuffix(lines[1], "urgency y 2 1600"))
	require.True(t, strings.HasSuffix(lines[2], "CloseNotification u 42"))
}

func TestNotifierShowErrorUsesProvidedTextAndDefaultTimeout(t *testing.T) {
	argsFile := installBusctlStub(t, `echo "u 7"`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false
	cfg.DesktopAppName = ""
	cfg.ErrorTimeoutMS = 0

	New(cfg, nil).ShowError(context.Background(), "Microphone access denied")

	lines := readLines(t, argsFile)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "mindful 0 audio-input-microphone Microphone access denied")
	require.True(t, strings.HasSuffix(lines[0], "urgency y 2 1600"))
}

func TestNotifierDisabledSkipsNotifications(t *testing.T) {
	argsFile := installBusctlStub(t, `echo "u 1"`)

	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	notify.ShowListening(context.Background())
	notify.ShowError(context.Background(), "boom")
	notify.Hide(context.Background())

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func TestNotifierBusctlFailureIsSwallowed(t *testing.T) {
	installBusctlStub(t, `echo "no bus" >&2; exit 1`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false

	notify := New(cfg, nil)
	notify.ShowListening(context.Background())
	notify.Hide(context.Background())
}

func TestNotifierPlaysCuesThroughPlayer(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = true

	var mu sync.Mutex
	var lengths []int
	notify := New(cfg, nil, WithPlayer(func(_ context.Context, samples []int16, _ int) error {
		mu.Lock()
		defer mu.Unlock()
		lengths = append(lengths, len(samples))
		return nil
	}))

	notify.ShowListening(context.Background())
	notify.CueStop(context.Background())
	notify.CueComplete(context.Background())
	notify.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lengths, 3)
	require.ElementsMatch(t, []int{
		len(cueSamples(cueStart)),
		len(cueSamples(cueStop)),
		len(cueSamples(cueComplete)),
	}, lengths)
}

func TestParseNotificationID(t *testing.T) {
	id, err := parseNotificationID("u 42")
	require.NoError(t, err)
	require.Equal(t, uint32(42), id)

	_, err = parseNotificationID("s hello")
	require.Error(t, err)

	_, err = parseNotificationID("u nope")
	require.Error(t, err)
}

// installBusctlStub puts a fake busctl on PATH that logs its argv to the
// returned file and then runs body.
func installBusctlStub(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "busctl-args.log")
	script := "#!/usr/bin/env bash\nset -euo pipefail\nprintf '%s\\n' \"$*\" >> " + argsFile + "\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "busctl"), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return argsFile
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}
