package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/confide/internal/anthropic"
	"github.com/MikeSquared-Agency/confide/internal/api"
	"github.com/MikeSquared-Agency/confide/internal/cache"
	"github.com/MikeSquared-Agency/confide/internal/catalog"
	"github.com/MikeSquared-Agency/confide/internal/config"
	"github.com/MikeSquared-Agency/confide/internal/detector"
	"github.com/MikeSquared-Agency/confide/internal/hermes"
	"github.com/MikeSquared-Agency/confide/internal/processor"
	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/session"
	"github.com/MikeSquared-Agency/confide/internal/slack"
	"github.com/MikeSquared-Agency/confide/internal/store"
	"github.com/MikeSquared-Agency/confide/internal/survey"
)

const sweepInterval = time.Minute

func main() {
	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("confide starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Phrase catalog
	cat, err := catalog.LoadFile(cfg.PhraseCatalog)
	if err != nil {
		slog.Error("failed to load phrase catalog", "path", cfg.PhraseCatalog, "error", err)
		os.Exit(1)
	}
	slog.Info("phrase catalog loaded", "phrases", cat.Len(), "version", cat.Version())

	// Detector
	var det detector.Detector
	switch cfg.Detector {
	case "static":
		det = detector.StaticDetector{}
		slog.Warn("using static substring detector")
	default:
		if cfg.AnthropicAPIKey == "" {
			slog.Error("ANTHROPIC_API_KEY is required for the llm detector")
			os.Exit(1)
		}
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		det = detector.NewLLM(llm, slog.Default())
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
	}

	// Detection cache (optional)
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		det = detector.NewCaching(det, cache.NewDetectionCache(rdb, cfg.CacheTTL), cat.Version(), slog.Default())
		slog.Info("detection cache ready", "ttl", cfg.CacheTTL)
	}

	// Recorder: local files always, databases best effort
	files, err := recorder.NewFileSink(cfg.DataDir)
	if err != nil {
		slog.Error("failed to prepare data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	rec := recorder.New(files, slog.Default())

	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		rec.AddRemote(db)
		slog.Info("database connected")
	}

	if cfg.MongoURI != "" {
		mongo, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			// Remote copies are best effort; keep serving from local files.
			slog.Warn("mongo unavailable, recording locally only", "error", err)
		} else {
			defer mongo.Close(context.Background())
			rec.AddRemote(mongo)
			slog.Info("mongo connected", "database", cfg.MongoDatabase)
		}
	}

	// Slack notifications (optional)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		rec.AddRemote(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default()))
		slog.Info("slack notifications ready", "channel", cfg.SlackChannel)
	}

	// Sessions
	sessions := session.NewManager(cfg.SessionTTL, slog.Default())
	go sessions.Run(ctx, sweepInterval)

	// Experience survey
	def, err := survey.Load()
	if err != nil {
		slog.Error("failed to load experience survey", "error", err)
		os.Exit(1)
	}

	// NATS/Hermes (optional)
	var bus *hermes.Client
	if cfg.NatsURL != "" {
		bus, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, chat logs arrive over HTTP only")
	}

	// Processor
	proc := processor.New(cat, det, sessions, rec, def, bus, processor.Options{
		MaxItems:          cfg.SurveyMaxItems,
		RequireExperience: cfg.RequireSurvey,
	}, slog.Default())

	if bus != nil {
		if err := bus.Subscribe(hermes.SubjectChatCompleted, proc.HandleChatCompleted); err != nil {
			slog.Error("failed to subscribe to chat events", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(api.Options{
		Port:        cfg.Port,
		APIToken:    cfg.APIToken,
		CORSOrigins: cfg.CORSOrigins,
	}, proc, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("confide ready",
		"port", cfg.Port,
		"detector", cfg.Detector,
		"max_items", cfg.SurveyMaxItems,
	)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("confide stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
