package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/loqalabs/loqa-asr/internal/audio"
	"github.com/loqalabs/loqa-asr/internal/bus"
	"github.com/loqalabs/loqa-asr/internal/config"
	"github.com/loqalabs/loqa-asr/internal/runtime"
	"github.com/nats-io/nats.go"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
		transcribe  string
	)

	flag.StringVar(&configPath, "config", "loqa-asr.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&transcribe, "transcribe", "", "Transcribe a raw 16kHz mono PCM16 or .wav file and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Telemetry.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if transcribe != "" {
		if err := transcribeFile(ctx, cfg, transcribe, logger); err != nil {
			logger.Error("transcription failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	rt := runtime.New(cfg, logger)
	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func transcribeFile(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) error {
	var (
		pcm []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		pcm, err = audio.ReadPCM(path)
	} else {
		pcm, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}

	var conn *nats.Conn
	if cfg.ASR.Engine.Mode == "bus" {
		client, err := bus.Connect(ctx, cfg.Bus, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		conn = client.Conn()
	}

	recognizer, err := runtime.BuildRecognizer(cfg.ASR, conn, logger)
	if err != nil {
		return err
	}
	result, ok := recognizer.Recognize(ctx, [][]byte{pcm})
	out := map[string]any{"ok": ok, "text": result.Text, "path": result.Path}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("recognizer returned no transcription")
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
