package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// parseArgv splits a command string the way a shell would for plain words:
// single and double quotes group, a backslash escapes the next rune, and a
// leading # disables the command. A leading ~/ in the program is expanded;
// nothing else is.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var tok argvTokenizer
	for _, r := range input {
		tok.next(r)
	}
	if err := tok.unterminated(); err != nil {
		return nil, fmt.Errorf("%w in command: %q", err, input)
	}

	argv := tok.finish()
	argv[0] = expandHome(argv[0])
	return argv, nil
}

type argvTokenizer struct {
	argv    []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escaped bool
}

func (t *argvTokenizer) next(r rune) {
	switch {
	case t.escaped:
		t.word.WriteRune(r)
		t.escaped = false
	case r == '\\' && t.quote != '\'':
		t.escaped, t.inWord = true, true
	case t.quote != 0 && r == t.quote:
		t.quote = 0
	case t.quote != 0:
		t.word.WriteRune(r)
	case r == '\'' || r == '"':
		t.quote, t.inWord = r, true
	case unicode.IsSpace(r):
		t.flush()
	default:
		t.word.WriteRune(r)
		t.inWord = true
	}
}

// flush ends the current word. Quoted empty strings survive as "" arguments.
func (t *argvTokenizer) flush() {
	if !t.inWord {
		return
	}
	t.argv = append(t.argv, t.word.String())
	t.word.Reset()
	t.inWord = false
}

func (t *argvTokenizer) unterminated() error {
	switch {
	case t.escaped:
		return errors.New("unterminated escape sequence")
	case t.quote != 0:
		return errors.New("unterminated quote")
	default:
		return nil
	}
}

func (t *argvTokenizer) finish() []string {
	t.flush()
	return t.argv
}

func expandHome(program string) string {
	if !strings.HasPrefix(program, "~/") {
		return program
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return program
	}
	return filepath.Join(home, program[2:])
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
