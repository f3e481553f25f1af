package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"moodvox/internal/assistant"
	"moodvox/internal/audio"
	"moodvox/internal/audio/mic"
	"moodvox/internal/bus"
	"moodvox/internal/chat"
	"moodvox/internal/config"
	"moodvox/internal/control"
	"moodvox/internal/emotion"
	"moodvox/internal/ipc"
	"moodvox/internal/notify"
	"moodvox/internal/proxy"
	"moodvox/internal/tts"
	"moodvox/pkg/stt"
	"moodvox/pkg/stt/whisper"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[cfg.LogLevel],
	})))

	log.Info("Booting up")

	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func run(ctx context.Context, cfg config.Config) error {
	httpClient, err := proxy.NewClient(cfg.Proxy, 2*time.Minute)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	if cfg.Proxy != "" {
		log.Debug("Loaded proxy", "proxy", cfg.Proxy)
	}

	chatClient, err := newChat(cfg, httpClient)
	if err != nil {
		return err
	}
	log.Debug("Loaded chat backend", "backend", cfg.ChatBackend)

	transcriber, closeSTT, err := newTranscriber(cfg, httpClient)
	if err != nil {
		return err
	}
	defer closeSTT()

	input := mic.NewPortAudio()
	if err := input.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer input.Close()

	sessionCfg := audio.DefaultSessionConfig()
	sessionCfg.MaxDuration = cfg.MaxDuration
	session := audio.NewSession(input, sessionCfg)
	if cfg.Duck {
		session.SetAttenuator(audio.NewDucker([]string{"moodvox", "moodvox-daemon"}, 5))
	}
	log.Debug("Loaded recorder")

	deps := assistant.Deps{
		Recorder: session,
		Classifier: emotion.NewClient(emotion.ClientConfig{
			URL:      cfg.ClassifierURL,
			MinBytes: cfg.MinArtifactBytes,
			Timeout:  cfg.RequestTimeout,
		}, httpClient),
		Chat:        chatClient,
		Transcriber: transcriber,
		Notifier:    notify.NewDesktop(cfg.BeepFile, "moodvox"),
	}

	if cfg.HubURL != "" {
		b := bus.New(cfg.HubURL, "moodvox", 5*time.Second)
		go b.Run(ctx)
		deps.Publisher = b
	}

	asst, err := assistant.New(assistant.Config{
		Retry: assistant.RetryPolicy{
			Attempts: cfg.Retries,
			Initial:  250 * time.Millisecond,
			Max:      2 * time.Second,
		},
		MinArtifactBytes: cfg.MinArtifactBytes,
		MaxFileDuration:  cfg.MaxDuration,
	}, deps)
	if err != nil {
		return err
	}

	srv, err := ipc.Listen(cfg.Socket)
	if err != nil {
		return fmt.Errorf("ipc: %w", err)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", cfg.Socket)

	var say control.Speaker
	if cfg.Speak {
		say = tts.Speak
	}
	return srv.Serve(ctx, control.NewHandler(asst, say, cfg.Voice).Handle)
}

func newChat(cfg config.Config, httpClient *http.Client) (chat.Client, error) {
	switch cfg.ChatBackend {
	case config.ChatOpenAI:
		c, err := chat.NewOpenAIClient(chat.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.RequestTimeout,
		}, httpClient)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return c, nil
	case config.ChatHTTP:
		return chat.NewHTTPClient(cfg.ChatURL, cfg.RequestTimeout, httpClient), nil
	default:
		return nil, errors.New("unknown chat backend " + cfg.ChatBackend)
	}
}

func newTranscriber(cfg config.Config, httpClient *http.Client) (assistant.Transcriber, func(), error) {
	switch cfg.STTBackend {
	case config.STTWhisper:
		w, err := whisper.New(cfg.WhisperModel, whisper.Options{
			Language:   cfg.WhisperLanguage,
			MaxSeconds: int(cfg.MaxDuration.Seconds()),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("whisper: %w", err)
		}
		log.Debug("Loaded whisper", "model", cfg.WhisperModel)
		return w, func() { w.Close() }, nil
	case config.STTHTTP:
		return stt.NewRemote(cfg.STTURL, cfg.RequestTimeout, httpClient).WithMinBytes(cfg.MinArtifactBytes), func() {}, nil
	default:
		log.Info("Speech to text disabled, voice turns only update mood")
		return nil, func() {}, nil
	}
}
