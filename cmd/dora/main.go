package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"github.com/openai/openai-go/v3/option"

	"github.com/khushiuttamani/ai-assistant/internal/agent"
	"github.com/khushiuttamani/ai-assistant/internal/audio"
	"github.com/khushiuttamani/ai-assistant/internal/camera"
	"github.com/khushiuttamani/ai-assistant/internal/config"
	"github.com/khushiuttamani/ai-assistant/internal/convo"
	"github.com/khushiuttamani/ai-assistant/internal/ipc"
	"github.com/khushiuttamani/ai-assistant/internal/notify"
	"github.com/khushiuttamani/ai-assistant/internal/proxy"
	"github.com/khushiuttamani/ai-assistant/internal/stt"
	"github.com/khushiuttamani/ai-assistant/internal/tts"
	"github.com/khushiuttamani/ai-assistant/internal/vision"
	"github.com/khushiuttamani/ai-assistant/internal/web"
	"github.com/khushiuttamani/ai-assistant/internal/webcam"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	addr := cli.StringP("addr", "a", "", "UI listen address (overrides LISTEN_ADDR)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	duckPercent := cli.IntP("duck", "d", 30, "Playback volume % while the mic is open (100 disables ducking)")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	cfg := config.Load(*envFile)
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if cfg.APIKey == "" {
		// Not fatal here: adapters report the configuration error on
		// first use, and the UI still comes up.
		log.Warn("GROQ_API_KEY not set, speech services will fail until configured")
	}

	var apiOpts []option.RequestOption
	apiOpts = append(apiOpts, option.WithBaseURL(cfg.BaseURL))
	if cfg.ProxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(cfg.ProxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", cfg.ProxyAddr, "err", err)
			os.Exit(1)
		}
		apiOpts = append(apiOpts, option.WithHTTPClient(httpClient))
		log.Debug("Loaded proxy")
	}

	var duck *audio.Ducker
	if *duckPercent < 100 {
		duck = audio.NewDucker(*duckPercent)
	}

	rec := audio.NewRecorder(duck)
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	gate := camera.NewGate()
	feed := webcam.NewFeed(cfg.CameraDevices, gate)
	eyes := vision.NewTool(cfg.APIKey, cfg.ChatModel, cfg.CameraDevices, gate, feed, apiOpts...)

	transcriber := stt.NewTranscriber(cfg.APIKey, cfg.STTModel, cfg.STTLang, apiOpts...)
	brain := agent.New(cfg.APIKey, cfg.ChatModel, eyes, apiOpts...)
	voice := tts.NewSynthesizer(cfg.APIKey, cfg.TTSModel, cfg.TTSVoice, cfg.TTSProvider, cfg.SpeechFile, apiOpts...)

	ctrl := convo.NewController(rec, transcriber, brain, voice, convo.Options{
		CaptureFile: cfg.CaptureFile,
		OnListening: func() {
			if err := notify.Chime(cfg.ChimeFile); err != nil {
				log.Debug("chime skipped", "err", err)
			}
		},
	})

	srv := web.NewServer(ctrl, feed)
	ctrl.SetOnUpdate(srv.BroadcastHistory)

	if err := ipc.StartServer(func(msg ipc.ControlMessage) string {
		switch msg.Cmd {
		case ipc.CmdListenStart:
			if ctrl.Start(context.Background()) {
				return "listening"
			}
			return "already listening"
		case ipc.CmdListenStop:
			ctrl.Stop()
			return "stopped"
		case ipc.CmdClear:
			ctrl.Clear()
			return "cleared"
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return "unknown command"
		}
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, cfg.ListenAddr); err != nil {
		log.Error("ui server failed", "err", err)
		os.Exit(1)
	}

	ctrl.Stop()
	feed.Stop()
}
