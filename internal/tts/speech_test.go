package tts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerCommandPerOS(t *testing.T) {
	cases := []struct {
		goos    string
		wantCmd string
	}{
		{"darwin", "afplay"},
		{"linux", "aplay"},
		{"windows", "powershell"},
	}
	for _, tc := range cases {
		t.Run(tc.goos, func(t *testing.T) {
			argv, err := playerCommand(tc.goos, "/tmp/reply.wav")
			require.NoError(t, err)
			assert.Equal(t, tc.wantCmd, argv[0])
		})
	}
}

func TestPlayerCommandUnsupportedOS(t *testing.T) {
	_, err := playerCommand("plan9", "/tmp/reply.wav")
	assert.ErrorIs(t, err, ErrUnsupportedOS)
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	s := NewSynthesizer("key", "model", "voice", ProviderOpenAI, "/tmp/reply.mp3")
	played := false
	s.play = func(ctx context.Context, wavPath string) error {
		played = true
		return nil
	}

	require.NoError(t, s.Speak(context.Background(), ""))
	assert.False(t, played)
}

func TestSpeakWithoutCredential(t *testing.T) {
	s := NewSynthesizer("", "model", "voice", ProviderOpenAI, "/tmp/reply.mp3")
	err := s.Speak(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestWavPathDerivedFromMP3Path(t *testing.T) {
	s := NewSynthesizer("key", "model", "voice", ProviderOpenAI, "/tmp/final.mp3")
	assert.Equal(t, "/tmp/final.wav", s.wavPath)
}
