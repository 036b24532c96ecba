package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"agent-bridge/internal/bot"
	"agent-bridge/internal/classifier"
	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/google"
	"agent-bridge/internal/notify"
	"agent-bridge/internal/server"
	"agent-bridge/internal/storage"
	"agent-bridge/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Outbound Google clients share one token file.
	tokens := google.NewFileTokenSource(cfg.Google.TokenPath)
	calendar := google.NewCalendarClient(google.CalendarConfig{
		CalendarID: cfg.Google.CalendarID,
		DryRun:     cfg.Google.DryRun,
	}, tokens, logger)
	sheets := google.NewSheetsClient(google.SheetsConfig{
		SpreadsheetID: cfg.Google.SheetsID,
		Range:         cfg.Google.SheetsRange,
		DryRun:        cfg.Google.DryRun,
	}, tokens, logger)

	// The rule table decides almost everything; the LLM is consulted
	// only for utterances the rules call unknown, and only when a key
	// is configured.
	var fallback dispatch.FallbackClassifier
	if cfg.OpenAI.APIKey != "" {
		fallback = classifier.NewLLMClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
		logger.Info("LLM fallback enabled", zap.String("model", cfg.OpenAI.Model))
	}

	dispatcher := dispatch.New(classifier.NewRuleClassifier(), fallback, calendar, sheets, store, logger)
	notifier := notify.New(cfg.LineWorks.WebhookURL, logger)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		BridgeSecret: cfg.Server.BridgeSecret,
		DryRun:       cfg.Google.DryRun,
	}, dispatcher, calendar, sheets, notifier, store, logger)

	// Optional Telegram bridge alongside the HTTP surface.
	var tgBot *bot.Bot
	if cfg.Telegram.Token != "" {
		tgBot, err = bot.New(cfg.Telegram.Token, dispatcher, store, logger)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
		go func() {
			if err := tgBot.Start(); err != nil {
				logger.Error("Bot error", zap.Error(err))
			}
		}()
		logger.Info("Telegram bridge started")
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr), zap.Bool("dry_run", cfg.Google.DryRun))
		if err := srv.Start(); err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	if tgBot != nil {
		tgBot.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
