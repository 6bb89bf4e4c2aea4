package audio

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeaderAndRoundTrip(t *testing.T) {
	pcm := []byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x00}

	data, err := EncodeWAV(pcm, SampleRate)
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Len(t, data, 44+len(pcm))

	samples, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Equal(t, SampleRate, rate)
	require.Equal(t, []int16{-32768, 32767, 0}, samples)
}

func TestEncodeWAVRejectsInvalidRate(t *testing.T) {
	_, err := EncodeWAV([]byte{1, 0}, 0)
	require.Error(t, err)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV([]byte("not a wav file"))
	require.Error(t, err)
}

func TestPCMDuration(t *testing.T) {
	require.Equal(t, time.Second, pcmDuration(2*SampleRate, SampleRate))
	require.Equal(t, 500*time.Millisecond, pcmDuration(SampleRate, SampleRate))
	require.Zero(t, pcmDuration(100, 0))
}

func TestSeekBufferPatchesEarlierBytes(t *testing.T) {
	buf := &seekBuffer{}
	_, err := buf.Write([]byte("abcdef"))
	require.NoError(t, err)

	pos, err := buf.Seek(2, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(2), pos)
	_, err = buf.Write([]byte("XY"))
	require.NoError(t, err)

	_, err = buf.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	_, err = buf.Write([]byte("!"))
	require.NoError(t, err)
	require.Equal(t, "abXYef!", string(buf.buf))

	_, err = buf.Seek(-1, io.SeekStart)
	require.Error(t, err)
}
