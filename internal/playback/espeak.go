package playback

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mindfulai/mindful/internal/audio"
)

// Player plays mono s16 samples and blocks until done or ctx is cancelled.
type Player func(ctx context.Context, samples []int16, sampleRate int) error

// PulsePlayer plays samples through the default PulseAudio sink.
func PulsePlayer(ctx context.Context, samples []int16, sampleRate int) error {
	return audio.PlayPCM(ctx, samples, sampleRate, "mindful speech")
}

// Espeak synthesizes speech with an espeak-ng compatible command.
type Espeak struct {
	Argv   []string
	Player Player
}

// NewEspeak returns a synthesizer running argv, playing through Pulse.
func NewEspeak(argv []string) *Espeak {
	if len(argv) == 0 {
		argv = []string{"espeak-ng"}
	}
	return &Espeak{Argv: argv, Player: PulsePlayer}
}

func (e *Espeak) Available() bool {
	if len(e.Argv) == 0 {
		return false
	}
	_, err := exec.LookPath(e.Argv[0])
	return err == nil
}

// Voices parses the voice table printed by --voices.
func (e *Espeak) Voices(ctx context.Context) ([]Voice, error) {
	if len(e.Argv) == 0 {
		return nil, errors.New("speech command is empty")
	}
	args := append(append([]string(nil), e.Argv[1:]...), "--voices")
	out, err := exec.CommandContext(ctx, e.Argv[0], args...).Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return parseVoices(out), nil
}

// Speak renders utt to a temporary WAV file, then plays it.
func (e *Espeak) Speak(ctx context.Context, utt Utterance) error {
	if len(e.Argv) == 0 {
		return errors.New("speech command is empty")
	}

	dir, err := os.MkdirTemp("", "mindful-speech-")
	if err != nil {
		return fmt.Errorf("create speech temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()
	wavPath := filepath.Join(dir, "utterance.wav")

	args := append(append([]string(nil), e.Argv[1:]...), espeakArgs(utt, wavPath)...)
	cmd := exec.CommandContext(ctx, e.Argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("synthesize speech: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(wavPath)
	if err != nil {
		return fmt.Errorf("read synthesized speech: %w", err)
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return err
	}

	player := e.Player
	if player == nil {
		player = PulsePlayer
	}
	return player(ctx, samples, rate)
}

// espeakArgs maps normalized prosody onto espeak-ng's native ranges:
// speed in words per minute (default 175), pitch 0-99 (default 50) and
// amplitude 0-200 (default 100).
func espeakArgs(utt Utterance, wavPath string) []string {
	speed := int(math.Round(utt.Rate * 175))
	pitch := int(math.Round(utt.Pitch * 50))
	if pitch > 99 {
		pitch = 99
	}
	amplitude := int(math.Round(utt.Volume * 100))

	args := []string{
		"-w", wavPath,
		"-s", strconv.Itoa(speed),
		"-p", strconv.Itoa(pitch),
		"-a", strconv.Itoa(amplitude),
	}
	switch {
	case utt.Voice != nil && utt.Voice.ID != "":
		args = append(args, "-v", utt.Voice.ID)
	case utt.Language != "":
		args = append(args, "-v", strings.ToLower(utt.Language))
	}
	return append(args, "--", utt.Text)
}

// parseVoices reads rows such as:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en
func parseVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		gender := ""
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			switch strings.ToUpper(g) {
			case "F":
				gender = "female"
			case "M":
				gender = "male"
			}
		}
		voices = append(voices, Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
			Gender:   gender,
			Local:    true,
		})
	}
	return voices
}
