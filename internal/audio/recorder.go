package audio

import (
	"context"
	"math"
	"time"

	log "log/slog"

	"github.com/gordonklaus/portaudio"

	"github.com/khushiuttamani/ai-assistant/pkg/audioconv"
)

const (
	sampleRate = 16000
	frameSize  = 320 // 20ms
	frameMs    = 20

	calibrationWindow = 1 * time.Second
	silenceTail       = 600 * time.Millisecond

	// Calibration never drops the threshold below this, so a dead-quiet
	// room does not turn breathing into speech onset.
	thresholdFloor = 0.012
	thresholdGain  = 1.8
)

type Recorder struct {
	duck *Ducker
}

// NewRecorder returns a microphone recorder. duck may be nil.
func NewRecorder(duck *Ducker) *Recorder { return &Recorder{duck: duck} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record captures one utterance from the default microphone into a WAV file
// at dest. It calibrates an ambient-noise threshold, waits up to wait for
// speech onset, then records until a silence tail or phraseLimit. It returns
// false when no speech was detected or any device error occurred; errors
// never propagate to the caller.
func (r *Recorder) Record(ctx context.Context, dest string, wait, phraseLimit time.Duration) bool {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		log.Error("open mic failed", "err", err)
		return false
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		log.Error("start mic failed", "err", err)
		return false
	}
	defer stream.Stop()

	if r.duck != nil {
		if err := r.duck.DuckOthers(ctx); err != nil {
			log.Warn("duck playback failed", "err", err)
		}
		defer r.duck.Restore(ctx)
	}

	threshold, ok := r.calibrate(ctx, stream, buf)
	if !ok {
		return false
	}
	log.Debug("ambient threshold calibrated", "rms", threshold)

	if !r.waitForOnset(ctx, stream, buf, threshold, wait) {
		log.Info("no speech detected", "wait", wait)
		return false
	}

	pcm, ok := r.capturePhrase(ctx, stream, buf, threshold, phraseLimit)
	if !ok {
		return false
	}

	if err := audioconv.WriteWAV(dest, audioconv.Float32ToInt16(pcm), sampleRate); err != nil {
		log.Error("write capture failed", "path", dest, "err", err)
		return false
	}

	log.Info("recording complete", "path", dest, "samples", len(pcm))
	return true
}

// calibrate measures the ambient RMS over a fixed window and derives the
// speech-onset threshold from it.
func (r *Recorder) calibrate(ctx context.Context, stream *portaudio.Stream, buf []float32) (float64, bool) {
	frames := int(calibrationWindow.Milliseconds()) / frameMs

	var sum float64
	for i := 0; i < frames; i++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if err := stream.Read(); err != nil {
			log.Error("mic read failed during calibration", "err", err)
			return 0, false
		}
		sum += frameRMS(buf)
	}

	threshold := sum / float64(frames) * thresholdGain
	if threshold < thresholdFloor {
		threshold = thresholdFloor
	}
	return threshold, true
}

func (r *Recorder) waitForOnset(ctx context.Context, stream *portaudio.Stream, buf []float32, threshold float64, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		if err := stream.Read(); err != nil {
			log.Error("mic read failed", "err", err)
			return false
		}
		if frameRMS(buf) > threshold {
			return true
		}
	}
	return false
}

func (r *Recorder) capturePhrase(ctx context.Context, stream *portaudio.Stream, buf []float32, threshold float64, phraseLimit time.Duration) ([]float32, bool) {
	maxFrames := int(phraseLimit.Milliseconds()) / frameMs
	silenceFrames := int(silenceTail.Milliseconds()) / frameMs

	out := make([]float32, 0, sampleRate*3)
	out = append(out, buf...) // onset frame

	var quiet int
	for i := 0; i < maxFrames; i++ {
		if ctx.Err() != nil {
			return nil, false
		}
		if err := stream.Read(); err != nil {
			log.Error("mic read failed", "err", err)
			return nil, false
		}

		out = append(out, buf...)

		if frameRMS(buf) > threshold {
			quiet = 0
		} else {
			quiet++
			if quiet >= silenceFrames {
				break
			}
		}
	}

	return out, true
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
