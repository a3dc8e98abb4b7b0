// Package tts turns reply text into audio played on the local output device.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/khushiuttamani/ai-assistant/pkg/audioconv"
)

// Provider names form the declared fallback chain: an unimplemented provider
// falls back to ProviderOpenAI with a logged substitution, never silently.
const (
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// ErrNoCredential means the API key is absent.
var ErrNoCredential = errors.New("tts: api key not configured")

type Synthesizer struct {
	client   openai.Client
	apiKey   string
	model    string
	voice    string
	provider string

	mp3Path string
	wavPath string

	// play is swappable in tests.
	play func(ctx context.Context, wavPath string) error
}

// NewSynthesizer builds the adapter. mp3Path is the transient synthesis
// artifact, overwritten each turn; the playback WAV lives next to it.
func NewSynthesizer(apiKey, model, voice, provider, mp3Path string, opts ...option.RequestOption) *Synthesizer {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &Synthesizer{
		client:   openai.NewClient(opts...),
		apiKey:   apiKey,
		model:    model,
		voice:    voice,
		provider: provider,
		mp3Path:  mp3Path,
		wavPath:  strings.TrimSuffix(mp3Path, ".mp3") + ".wav",
		play:     playWAV,
	}
}

// Speak synthesizes text, transcodes to WAV and plays it through the OS
// player. The caller treats failures as best-effort; they are returned for
// logging only.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if s.apiKey == "" {
		return ErrNoCredential
	}

	if s.provider == ProviderElevenLabs {
		log.Warn("tts provider not implemented, substituting baseline",
			"requested", ProviderElevenLabs, "using", ProviderOpenAI)
	}

	if err := s.synthesize(ctx, text); err != nil {
		return err
	}
	if err := audioconv.MP3ToWAV(s.mp3Path, s.wavPath); err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	return s.play(ctx, s.wavPath)
}

func (s *Synthesizer) synthesize(ctx context.Context, text string) error {
	res, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer res.Body.Close()

	out, err := os.Create(s.mp3Path)
	if err != nil {
		return fmt.Errorf("create speech artifact: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, res.Body); err != nil {
		return fmt.Errorf("write speech artifact: %w", err)
	}
	return nil
}
