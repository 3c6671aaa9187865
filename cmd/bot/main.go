package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/yaadak/yaadak/internal/ai"
	"github.com/yaadak/yaadak/internal/config"
	"github.com/yaadak/yaadak/internal/delivery/telegram"
	"github.com/yaadak/yaadak/internal/i18n"
	"github.com/yaadak/yaadak/internal/infra/postgres"
	"github.com/yaadak/yaadak/internal/infra/postgres/repository"
	"github.com/yaadak/yaadak/internal/logger"
	"github.com/yaadak/yaadak/internal/notify"
	"github.com/yaadak/yaadak/internal/service"
	"github.com/yaadak/yaadak/internal/session"
)

const parsesPerHour = 30

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		zl.Fatal("failed to create telegram bot", zap.Error(err))
	}
	zl.Info("authorized", zap.String("account", bot.Self.UserName))

	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "list", Description: "Active reminders"},
		{Command: "stats", Description: "Your reminder numbers"},
		{Command: "settings", Description: "Language, timezone and calendar"},
		{Command: "help", Description: "Help"},
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		zl.Warn("failed to set bot commands", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.DB.DSN()
	if err != nil {
		zl.Fatal("database not configured", zap.Error(err))
	}

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:        int32(cfg.DB.MaxConnections),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		zl.Fatal("failed to create pool", zap.Error(err))
	}
	defer pool.Close()

	tr, err := i18n.New()
	if err != nil {
		zl.Fatal("failed to load locales", zap.Error(err))
	}

	reminderRepo := repository.NewRemindersRepository(pool, zl)
	settingsRepo := repository.NewSettingsRepository(pool, zl)
	transactor := postgres.NewTransactor(pool)
	txRepo := func(tx pgx.Tx) service.ReminderRepository {
		return repository.NewRemindersRepository(tx, zl)
	}

	reminderService := service.NewReminderService(reminderRepo, transactor, txRepo, zl)
	settingsService := service.NewSettingsService(settingsRepo, cfg.Defaults.Language, cfg.Defaults.Timezone, zl)

	parser := ai.NewParser(ai.NewClient(cfg.AI))
	notifier := notify.New(cfg.Notify.Strategy, bot, tr, cfg.Notify.MaxRetries, zl)
	sessions := session.NewStore(parsesPerHour)

	scheduler := service.NewScheduler(reminderRepo, settingsRepo, notifier, cfg.Scheduler, cfg.Defaults.Language, zl)
	reconciler := service.NewReconciler(reminderRepo, zl)

	// Repair the schedule before the first tick.
	if _, err := reconciler.Run(ctx); err != nil {
		zl.Fatal("startup reconciliation failed", zap.Error(err))
	}

	go scheduler.Start(ctx)
	go sessions.Run(ctx)

	handler := telegram.NewHandler(bot, zl, tr, reminderService, settingsService, parser, sessions)
	if err := handler.Run(ctx); err != nil && ctx.Err() == nil {
		zl.Fatal("telegram handler failed", zap.Error(err))
	}

	zl.Info("shutdown complete")
}
