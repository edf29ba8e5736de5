package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/ngguard/internal/bot"
	"github.com/iamwavecut/ngguard/internal/config"
	"github.com/iamwavecut/ngguard/internal/db/redisstore"
	"github.com/iamwavecut/ngguard/internal/db/sqlite"
	"github.com/iamwavecut/ngguard/internal/event"
	"github.com/iamwavecut/ngguard/internal/handlers"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/infra"
	"github.com/iamwavecut/ngguard/internal/infra/reg"
	"github.com/iamwavecut/ngguard/internal/infrastructure/telegram"
	"github.com/iamwavecut/ngguard/internal/lifecycle"
	"github.com/iamwavecut/ngguard/internal/moderation"
	"github.com/iamwavecut/ngguard/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))
	i18n.SetDefault(cfg.DefaultLanguage)

	if err := run(cfg); err != nil {
		log.WithField("error", err.Error()).Error("exiting")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir, err := infra.EnsureDir(cfg.DotPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewSQLiteClient(ctx, dataDir, cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithField("error", err.Error()).Warn("cant close db")
		}
	}()

	var warnings moderation.WarningStore = store
	if cfg.RedisURL != "" {
		redisWarnings, err := redisstore.NewWarningStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = redisWarnings.Close() }()
		warnings = redisWarnings
		log.Info("warnings are kept in redis")
	}

	registry := reg.New(store)
	warmed, err := registry.Warm(ctx)
	if err != nil {
		return err
	}
	log.WithField("chats", warmed).Info("settings loaded")

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return err
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	log.WithField("bot", botAPI.Self.UserName).Info("authorized")

	transport := telegram.NewTransport(botAPI, cfg.Telegram.SendRate, cfg.Telegram.SendBurst)
	metrics := observability.NewMetrics()
	scheduler := moderation.NewTimerScheduler()

	service := moderation.NewService(moderation.Dependencies{
		Transport: transport,
		Settings:  registry,
		Trusted:   store,
		Warnings:  warnings,
		Profiles:  transport,
		Scheduler: scheduler,
		Metrics:   metrics,
		OwnerID:   cfg.OwnerID,
		MasterIDs: cfg.MasterIDs,
	})
	rights := service.Exemptions()
	dispatcher := event.NewDispatcher(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, metrics)

	processor := bot.NewUpdateProcessor(
		dispatcher,
		handlers.NewMembership(service, rights),
		handlers.NewGatekeeper(service, transport, botAPI.Self.ID),
		handlers.NewAdmin(service, rights, transport, botAPI.Self.ID),
		handlers.NewReactor(service),
	)
	poller := bot.NewPoller(botAPI, store, processor)

	runtime := lifecycle.NewRuntime()
	runtime.Register("tracing", observability.NewTracing(cfg.Metrics.TraceSampleRatio))
	runtime.Register("scheduler", scheduler)
	runtime.Register("moderation", service)
	runtime.Register("dispatcher", dispatcher)
	if cfg.Metrics.Addr != "" {
		runtime.Register("metrics", observability.NewServer(cfg.Metrics.Addr, metrics, func(ctx context.Context) error {
			_, err := store.GetKV(ctx, "updates_offset")
			return err
		}))
	}

	if err := runtime.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Warn("unclean shutdown")
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return poller.Run(groupCtx)
	})
	group.Go(func() error {
		select {
		case <-infra.MonitorExecutable(groupCtx):
			log.Warn("executable file was modified, restarting")
			stop()
		case <-groupCtx.Done():
		}
		return nil
	})

	err = group.Wait()
	if ctx.Err() != nil {
		log.Info("shutting down")
		return nil
	}
	return err
}
