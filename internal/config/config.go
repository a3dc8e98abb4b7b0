package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// TTS provider names. Elevenlabs is wired in configuration but has no
// implementation yet; the synthesizer logs a substitution and uses the
// baseline provider instead.
const (
	TTSProviderOpenAI     = "openai"
	TTSProviderElevenLabs = "elevenlabs"
)

type Config struct {
	// APIKey is the Groq credential shared by transcription, reasoning,
	// vision and synthesis. It may be empty here; adapters report a
	// configuration error on first use, not at startup.
	APIKey  string
	BaseURL string

	STTModel  string
	STTLang   string
	ChatModel string
	TTSModel  string
	TTSVoice  string

	TTSProvider string

	// Transient artifacts, overwritten every turn.
	CaptureFile string
	SpeechFile  string

	ChimeFile string

	ListenAddr string
	ProxyAddr  string

	CameraDevices []string
}

// Load reads the optional env file and assembles the runtime configuration.
func Load(envFile string) Config {
	godotenv.Load(envFile)

	cfg := Config{
		APIKey:      os.Getenv("GROQ_API_KEY"),
		BaseURL:     getenv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		STTModel:    getenv("STT_MODEL", "whisper-large-v3"),
		STTLang:     getenv("STT_LANGUAGE", "en"),
		ChatModel:   getenv("CHAT_MODEL", "meta-llama/llama-4-maverick-17b-128e-instruct"),
		TTSModel:    getenv("TTS_MODEL", "playai-tts"),
		TTSVoice:    getenv("TTS_VOICE", "Fritz-PlayAI"),
		TTSProvider: getenv("TTS_PROVIDER", TTSProviderOpenAI),
		CaptureFile: filepath.Join(os.TempDir(), "audio_question.wav"),
		SpeechFile:  filepath.Join(os.TempDir(), "assistant_reply.mp3"),
		ChimeFile:   getenv("CHIME_FILE", "chime.mp3"),
		ListenAddr:  getenv("LISTEN_ADDR", "127.0.0.1:7860"),
		ProxyAddr:   os.Getenv("SOCKS_PROXY"),

		CameraDevices: []string{"/dev/video0", "/dev/video1", "/dev/video2", "/dev/video3"},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
