package audioconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32ToInt16ClampsAndScales(t *testing.T) {
	in := []float32{0, 1, -1, 2.5, -2.5, 0.5}
	out := Float32ToInt16(in)

	assert.Equal(t, 0, out[0])
	assert.Equal(t, 32767, out[1])
	assert.Equal(t, -32767, out[2])
	assert.Equal(t, 32767, out[3], "overdrive clamps to full scale")
	assert.Equal(t, -32767, out[4])
	assert.InDelta(t, 16384, out[5], 1)
}

func TestWriteWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	samples := []int{0, 1000, -1000, 32767, -32767}

	require.NoError(t, WriteWAV(path, samples, 16000))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, samples, buf.Data)
	assert.Equal(t, 16000, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)
}

func TestMP3ToWAVRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	mp3Path := filepath.Join(dir, "bad.mp3")
	require.NoError(t, os.WriteFile(mp3Path, []byte("not an mp3 stream"), 0o644))

	err := MP3ToWAV(mp3Path, filepath.Join(dir, "out.wav"))
	assert.Error(t, err)
}
