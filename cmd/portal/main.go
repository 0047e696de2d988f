package main

import (
	"context"
	"errors"

	"evidence-portal/internal/app"
	"evidence-portal/internal/config"
	"evidence-portal/internal/logging"
	"evidence-portal/internal/notifier"
	"evidence-portal/pkg/db/postgres"
	"evidence-portal/pkg/db/redis"
	"evidence-portal/pkg/messenger"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logging.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	log.Info("Starting evidence portal...")

	if err := postgres.InitDB(cfg.Database); err != nil {
		log.Fatalf("Failed to postgres init: %v", err)
	}

	ctx := context.Background()
	store, err := redis.InitRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to redis init: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("closing redis: %v", err)
		}
	}()

	var (
		sender notifier.Notifier = notifier.LogNotifier{}
		files  app.FileLookup
	)
	bot, err := messenger.NewBot(cfg.Bot, cfg.LogLevel == "debug")
	switch {
	case errors.Is(err, messenger.ErrNoToken):
		log.Warn("BOT_TOKEN is not set, notifications go to the log only")
	case err != nil:
		log.Fatalf("Failed to messenger bot init: %v", err)
	default:
		sender = notifier.NewBotNotifier(bot)
		if files, err = messenger.NewFiles(cfg.Bot, nil); err != nil {
			log.Fatalf("Failed to messenger files init: %v", err)
		}
	}

	queue := notifier.NewQueue(store)
	portal := app.NewPortal(postgres.GetDB(), queue, files, cfg.CommitTimeout)
	dispatcher := notifier.NewDispatcher(queue, sender, cfg.DispatchInterval)

	if err := app.NewApp(portal, queue, dispatcher, cfg.DispatchInterval).Run(ctx); err != nil {
		log.Fatal(err)
	}
}
