// Package main contains the entrypoint for the nutrition bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nutrizap/nutrizap/internal/assistant"
	"github.com/nutrizap/nutrizap/internal/bot"
	"github.com/nutrizap/nutrizap/internal/bot/tasks"
	"github.com/nutrizap/nutrizap/internal/config"
	"github.com/nutrizap/nutrizap/internal/database"
	"github.com/nutrizap/nutrizap/internal/dispatch"
	"github.com/nutrizap/nutrizap/internal/intent"
	"github.com/nutrizap/nutrizap/internal/logger"
	"github.com/nutrizap/nutrizap/internal/medical"
	"github.com/nutrizap/nutrizap/internal/sender"
	"github.com/nutrizap/nutrizap/internal/vision"
	"github.com/nutrizap/nutrizap/internal/webhook"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all application components, starts the orchestrator, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	classifier, err := intent.NewGeminiClassifier(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize intent classifier", "error", err)
		return 1
	}
	interpreter := intent.NewInterpreter(classifier, log)

	assistantClient, err := assistant.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize assistant client", "error", err)
		return 1
	}

	visionClient := vision.NewClient(cfg.Vision, log)
	medicalResponder := medical.New(medical.NewHTTPAnalyzer(cfg.Vision.BaseURL, cfg.Vision.Timeout), log)

	out := sender.New(sender.Config{
		BaseURL:        cfg.WhatsApp.BaseURL,
		Instance:       cfg.WhatsApp.Instance,
		APIKey:         cfg.WhatsApp.APIKey,
		MaxAttempts:    cfg.WhatsApp.MaxAttempts,
		BackoffBase:    cfg.WhatsApp.BackoffBase,
		RequestTimeout: cfg.WhatsApp.RequestTimeout,
		MaxLength:      cfg.WhatsApp.MaxLength,
	}, log)

	dispatcher := dispatch.New(dispatch.Options{
		Store:       store,
		Interpreter: interpreter,
		Vision:      visionClient,
		Assistant:   assistantClient,
		Medical:     medicalResponder,
		Sender:      out,
		Messages:    cfg.Messages,
		TTL:         cfg.Pending.TTL,
		MedicalTTL:  cfg.Pending.MedicalTTL,
		Logger:      log,
	})

	server := webhook.NewServer(cfg.Server.ListenAddr, dispatcher, store, log)

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, db, store, server, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
