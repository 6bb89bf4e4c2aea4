// Package cli parses the mindful command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandListen    Command = "listen"
	CommandToggle    Command = "toggle"
	CommandStop      Command = "stop"
	CommandStatus    Command = "status"
	CommandSpeak     Command = "speak"
	CommandSentiment Command = "sentiment"
	CommandDevices   Command = "devices"
	CommandVoices    Command = "voices"
	CommandMic       Command = "mic"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandListen:    {},
	CommandToggle:    {},
	CommandStop:      {},
	CommandStatus:    {},
	CommandSpeak:     {},
	CommandSentiment: {},
	CommandDevices:   {},
	CommandVoices:    {},
	CommandMic:       {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

// textCommands take the rest of the command line as free text.
var textCommands = map[Command]struct{}{
	CommandSpeak:     {},
	CommandSentiment: {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Text is the joined free-text argument of speak and sentiment.
	Text string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if _, ok := textCommands[cmd]; ok {
				parsed.Text = strings.TrimSpace(strings.Join(rest, " "))
				if parsed.Text == "" {
					return Parsed{}, fmt.Errorf("%s requires text", arg)
				}
				return parsed, nil
			}
			if len(rest) > 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [TEXT...]

Commands:
  listen          Capture and transcribe speech until stopped or timed out
  toggle          Stop the running session, or start one when idle
  stop            Stop the running session
  status          Print session state and latest transcript
  speak TEXT      Read TEXT aloud
  sentiment TEXT  Classify TEXT as positive, negative, stressed or neutral
  devices         List available input devices
  voices          List available synthesis voices
  mic             Check microphone permission and open the device once
  doctor          Run configuration and environment checks
  version         Print version information
  help            Show this help

Flags:
  --config PATH   Config file path (default: $MINDFUL_CONFIG, else $XDG_CONFIG_HOME/mindful/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
