package indicator

import (
	"context"
	"math"
	"time"

	"github.com/mindfulai/mindful/internal/audio"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	cueVolume     = 0.18
)

// Player renders mono s16 PCM at the given sample rate.
type Player func(ctx context.Context, samples []int16, sampleRate int) error

func pulsePlayer(ctx context.Context, samples []int16, sampleRate int) error {
	return audio.PlayPCM(ctx, samples, sampleRate, "mindful cue")
}

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var cuePCM = map[cueKind][]int16{
	cueStart: synthesizeCue([]toneSpec{
		{frequencyHz: 660, duration: 80 * time.Millisecond, volume: cueVolume},
		{frequencyHz: 880, duration: 80 * time.Millisecond, volume: cueVolume},
	}),
	cueStop: synthesizeCue([]toneSpec{
		{frequencyHz: 587, duration: 120 * time.Millisecond, volume: cueVolume},
	}),
	cueComplete: synthesizeCue([]toneSpec{
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: cueVolume},
		{frequencyHz: 988, duration: 90 * time.Millisecond, volume: cueVolume},
	}),
	cueError: synthesizeCue([]toneSpec{
		{frequencyHz: 440, duration: 90 * time.Millisecond, volume: cueVolume},
		{frequencyHz: 330, duration: 120 * time.Millisecond, volume: cueVolume},
	}),
}

func cueSamples(kind cueKind) []int16 {
	return cuePCM[kind]
}

func emitCue(ctx context.Context, play Player, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cueSamples(kind)
	if len(samples) == 0 || play == nil {
		return nil
	}
	return play(ctx, samples, cueSampleRate)
}

func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gap := samplesForDuration(cueGap)

	var pcm []int16
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

// synthesizeTone renders a sine tone with a short linear ramp at both ends
// so cues start and stop without clicks.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := min(n/10, cueSampleRate/200)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / cueSampleRate
		sample := math.Sin(2 * math.Pi * spec.frequencyHz * t)
		pcm[i] = int16(math.Round(sample * spec.volume * envelope * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
