package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/quran-companion/internal/app"
	"github.com/aliskhannn/quran-companion/internal/config"
	"github.com/aliskhannn/quran-companion/internal/delivery/telegram"
	"github.com/aliskhannn/quran-companion/internal/logger"
	"github.com/aliskhannn/quran-companion/internal/service"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("bot stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return fmt.Errorf("telegram login: %w", err)
	}
	lg.Info("authorized on account", zap.String("username", bot.Self.UserName))

	// Set commands.
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Démarrer le bot"},
		{Command: "surah", Description: "Ouvrir une sourate (ex. /surah 18)"},
		{Command: "verse", Description: "Ouvrir un verset (ex. /verse 2:255)"},
		{Command: "search", Description: "Rechercher un mot ou une référence"},
		{Command: "progress", Description: "Afficher la progression"},
		{Command: "notes", Description: "Afficher vos notes"},
		{Command: "remind", Description: "Activer ou désactiver le rappel quotidien"},
		{Command: "help", Description: "Aide"},
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		lg.Warn("failed to set bot commands", zap.Error(err))
	}

	kv, closeStorage, err := app.OpenStorage(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStorage()

	reading := app.NewReading(cfg, lg)

	sessions := telegram.NewSessions(func(ctx context.Context, chatID int64) (*service.ReaderSession, error) {
		scoped := storage.NewPrefixed(kv, fmt.Sprintf("chat:%d:", chatID))
		return reading.NewSession(ctx, telegram.NewAudioBackend(bot, chatID), scoped)
	}, lg)
	defer sessions.Close()

	reminders := service.NewReminderService(kv, sessions, cfg.Reminders.Schedule, lg)
	if err := reminders.Load(ctx); err != nil {
		return err
	}

	handler := telegram.NewHandler(bot, lg, sessions, reading.Chapters, reminders)
	reminders.SetNotifier(handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Run(gctx)
	})
	if cfg.Reminders.Enabled {
		g.Go(func() error {
			return reminders.Start(gctx)
		})
	}
	if idle := cfg.Sessions.IdleTimeout; idle > 0 {
		g.Go(func() error {
			return sessions.RunEviction(gctx, idle)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		lg.Info("shutdown signal received")
		return nil
	}
	return err
}
