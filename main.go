// Command roomwarden is the main entrypoint for the chat-room bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the violation ledger and the sqlite message archive.
//   - Runs the polling reconciler: join the room, read snapshots, moderate
//     and answer messages, keep the room alive.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/roomwarden/bot"
	"github.com/onnwee/roomwarden/config"
	"github.com/onnwee/roomwarden/drrr"
	"github.com/onnwee/roomwarden/moderation"
	"github.com/onnwee/roomwarden/providers"
	"github.com/onnwee/roomwarden/server"
	"github.com/onnwee/roomwarden/store"
	"github.com/onnwee/roomwarden/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateRoomReady(); err != nil {
		slog.Error("room config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("roomwarden", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Moderation pipeline: violation ledger plus the three detectors.
	ledger := moderation.OpenLedger(cfg.ViolationsPath)
	policy := moderation.NewPolicy(
		cfg.AdminName,
		moderation.NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		moderation.NewRepeatDetector(cfg.RepeatLimit),
		moderation.NewContentFilter(),
		ledger,
	)

	// Message archive (sqlite)
	archive, err := store.OpenArchive(cfg.ArchivePath)
	if err != nil {
		slog.Error("failed to open archive", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			slog.Error("failed to close archive", slog.Any("err", err))
		}
	}()

	// Room client and providers
	room := drrr.New(cfg.Cookie)
	if cfg.BaseURL != "" {
		room.BaseURL = cfg.BaseURL
	}
	ai := providers.NewRetryingAI(providers.NewOpenAIProvider(cfg.AIAPIKey, cfg.AIBaseURL))
	music := providers.NewMusicClient(cfg.MusicAPIURL)
	tts := providers.NewTTSClient(cfg.TTSAPIURL)

	b := bot.New(room, ai, music, tts, policy, archive, bot.Options{
		RoomID:            cfg.RoomID,
		BotName:           cfg.BotName,
		Models:            cfg.AIModels,
		PollInterval:      cfg.PollInterval,
		KeepAliveInterval: cfg.KeepAliveInterval,
		HangInterval:      cfg.HangInterval,
		AutoPlayInterval:  cfg.AutoPlayInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		AutoPlay:          cfg.AutoPlay,
		HeartbeatPath:     cfg.HeartbeatPath,
	})

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server (health/status/metrics)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewMux(server.Source{
			RoomID:        cfg.RoomID,
			HeartbeatPath: cfg.HeartbeatPath,
			Bot:           b,
			Ledger:        ledger,
			Archive:       archive,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Run the bot until signalled; Run handles leave and the final heartbeat.
	if err := b.Run(ctx); err != nil {
		slog.Error("bot exited with error", slog.Any("err", err))
		stop()
		shutdownHTTP(srv)
		os.Exit(1)
	}

	slog.Info("shutting down")
	shutdownHTTP(srv)
}

func shutdownHTTP(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http shutdown failed", slog.Any("err", err))
	}
}
