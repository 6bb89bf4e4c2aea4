package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVMIMEType is the media type of finalized recordings.
const WAVMIMEType = "audio/wav"

// Chunk is one interval of captured PCM in arrival order.
type Chunk struct {
	Seq  int
	Data []byte
}

// Artifact is the finalized recording of one capture.
type Artifact struct {
	MIMEType   string
	Data       []byte
	Chunks     int
	Bytes      int
	Duration   time.Duration
	SampleRate int
}

// EncodeWAV wraps mono s16le PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish wav: %w", err)
	}
	return out.buf, nil
}

// DecodeWAV returns the samples of a 16-bit WAV payload, downmixed to mono.
func DecodeWAV(data []byte) ([]int16, int, error) {
	dec := wav.NewDecoder(&seekBuffer{buf: data})
	if !dec.IsValidFile() {
		return nil, 0, errors.New("decode wav: invalid file")
	}
	if dec.BitDepth != 16 {
		return nil, 0, fmt.Errorf("decode wav: unsupported bit depth %d", dec.BitDepth)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	samples := make([]int16, 0, len(pcm.Data)/channels)
	for i := 0; i+channels <= len(pcm.Data); i += channels {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += pcm.Data[i+c]
		}
		samples = append(samples, int16(sum/channels))
	}
	return samples, int(dec.SampleRate), nil
}

func pcmDuration(bytes int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	frames := bytes / 2
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// seekBuffer is an in-memory io.ReadWriteSeeker for the WAV codec, which
// patches header sizes by seeking back after the samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.pos = int(next)
	return next, nil
}
