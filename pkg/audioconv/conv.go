// Package audioconv holds the PCM plumbing shared by the recorder and the
// speech synthesizer: float32 to int16 conversion, WAV encoding and
// mp3 -> WAV transcoding.
package audioconv

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Float32ToInt16 clamps samples to [-1, 1] and scales to 16-bit PCM.
func Float32ToInt16(in []float32) []int {
	out := make([]int, len(in))
	for i, x := range in {
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		out[i] = int(math.Round(float64(x) * 32767))
	}
	return out
}

// WriteWAV writes mono 16-bit PCM samples to path.
func WriteWAV(path string, samples []int, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// MP3ToWAV decodes an mp3 file and rewrites it as WAV so the OS players can
// handle it. go-mp3 always emits interleaved stereo 16-bit LE at the source
// sample rate; we downmix to mono.
func MP3ToWAV(mp3Path, wavPath string) error {
	src, err := os.Open(mp3Path)
	if err != nil {
		return fmt.Errorf("open mp3: %w", err)
	}
	defer src.Close()

	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return fmt.Errorf("read mp3 pcm: %w", err)
	}

	// 4 bytes per frame: L16 + R16.
	mono := make([]int, 0, len(raw)/4)
	for i := 0; i+3 < len(raw); i += 4 {
		l := int(int16(uint16(raw[i]) | uint16(raw[i+1])<<8))
		r := int(int16(uint16(raw[i+2]) | uint16(raw[i+3])<<8))
		mono = append(mono, (l+r)/2)
	}

	return WriteWAV(wavPath, mono, dec.SampleRate())
}
