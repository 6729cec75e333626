package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pnptv/broadcastq/admin"
	"github.com/pnptv/broadcastq/core/broadcast"
	"github.com/pnptv/broadcastq/core/logger"
	"github.com/pnptv/broadcastq/core/queue"
	"github.com/pnptv/broadcastq/integration/database/pg"
	"github.com/pnptv/broadcastq/integration/database/redis"
	"github.com/pnptv/broadcastq/integration/telegram"
)

type config struct {
	Log      logger.Config
	Queue    queue.Config
	Postgres pg.Config
	Redis    redis.Config
	Telegram telegram.Config
	Admin    admin.Config

	// The delivery ledger is opt-in: without it a retried broadcast resends
	// to the full audience.
	LedgerEnabled bool `env:"BROADCAST_LEDGER_ENABLED" envDefault:"false"`
}

func main() {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("service terminated", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, log); err != nil {
		return err
	}

	storage, err := pg.NewJobStorage(pool)
	if err != nil {
		return err
	}

	service, err := queue.NewServiceFromConfig(cfg.Queue, storage,
		queue.WithServiceLogger(log),
		queue.WithWorkerOptions(queue.WithWorkerLogger(log)),
		queue.WithSchedulerOptions(queue.WithSchedulerLogger(log)),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue service: %w", err)
	}

	sender, err := telegram.New(cfg.Telegram)
	if err != nil {
		return fmt.Errorf("failed to create telegram client: %w", err)
	}

	broadcastRepo, err := pg.NewBroadcastRepository(pool)
	if err != nil {
		return err
	}

	fanoutOpts := []broadcast.FanoutOption{broadcast.WithLogger(log)}
	if cfg.LedgerEnabled {
		redisClient, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		ledger, err := redis.NewLedger(redisClient, cfg.Redis.LedgerTTL)
		if err != nil {
			return err
		}
		fanoutOpts = append(fanoutOpts, broadcast.WithLedger(ledger))
	}

	fanout, err := broadcast.NewFanout(broadcastRepo, sender, fanoutOpts...)
	if err != nil {
		return fmt.Errorf("failed to create broadcast fan-out: %w", err)
	}

	if err := service.RegisterHandlers(
		fanout.SendBroadcastHandler(),
		fanout.SendSegmentBroadcastHandler(),
		queue.NewRetryScanHandler(storage, log),
		queue.NewCleanupHandler(storage, log),
	); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}

	if err := service.AddSchedule(queue.JobTypeProcessRetries,
		queue.Every(cfg.Queue.RetryInterval),
		queue.WithScheduleQueue(queue.QueueRetries),
		queue.WithScheduleMaxAttempts(1),
	); err != nil {
		return fmt.Errorf("failed to schedule retry scan: %w", err)
	}

	if err := service.AddSchedule(queue.JobTypeCleanupQueue,
		queue.DailyAt(cfg.Queue.CleanupHour, 0),
		queue.WithScheduleQueue(queue.QueueCleanup),
		queue.WithSchedulePayload(queue.CleanupPayload{DaysOld: cfg.Queue.RetentionDays}),
	); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	adminHandler, err := admin.NewHandler(service, admin.WithHandlerLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create admin handler: %w", err)
	}
	adminServer := admin.NewServer(cfg.Admin, admin.WithServerLogger(log))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return service.Run(ctx) })
	eg.Go(adminServer.Run(ctx, adminHandler.Router()))

	log.Info("broadcastq started",
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.Any("queues", cfg.Queue.Queues))

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("broadcastq stopped")
	return nil
}
