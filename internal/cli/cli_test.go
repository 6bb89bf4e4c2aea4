package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/mindful.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/mindful.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseTextCommandsJoinRemainingArgs(t *testing.T) {
	parsed, err := Parse([]string{"speak", "Take", "a", "slow", "breath."})
	require.NoError(t, err)
	require.Equal(t, CommandSpeak, parsed.Command)
	require.Equal(t, "Take a slow breath.", parsed.Text)

	parsed, err = Parse([]string{"--config", "/tmp/cfg", "sentiment", "--not-a-flag", "text"})
	require.NoError(t, err)
	require.Equal(t, CommandSentiment, parsed.Command)
	require.Equal(t, "--not-a-flag text", parsed.Text)
	require.Equal(t, "/tmp/cfg", parsed.ConfigPath)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:    "version flag",
			args:    []string{"--version"},
			wantCmd: CommandVersion,
		},
		{
			name:    "config after command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "speak without text",
			args:    []string{"speak"},
			wantErr: "speak requires text",
		},
		{
			name:    "sentiment with blank text",
			args:    []string{"sentiment", " "},
			wantErr: "sentiment requires text",
		},
		{
			name:    "listen command",
			args:    []string{"listen"},
			wantCmd: CommandListen,
		},
		{
			name:    "mic command",
			args:    []string{"mic"},
			wantCmd: CommandMic,
		},
		{
			name:     "stop with config",
			args:     []string{"--config", "/tmp/cfg", "stop"},
			wantCmd:  CommandStop,
			wantPath: "/tmp/cfg",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("mindful")
	for _, want := range []string{"listen", "stop", "speak TEXT", "sentiment TEXT", "voices", "doctor", "--config PATH", "config.jsonc"} {
		require.Contains(t, text, want)
	}
}
