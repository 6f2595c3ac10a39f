package cron

import (
	"context"
	"fmt"
	"time"

	"tablebook/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeMaintenanceSweep = "maintenance:sweep"

// Sweeper expires work whose window has passed. It returns how many records
// it touched.
type Sweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

type MaintenanceWorker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// StartMaintenance registers the periodic sweep on SWEEP_SCHEDULE and starts
// the worker that runs it. Every instance may run a scheduler; the unique
// option keeps one sweep per tick in the queue.
func StartMaintenance(sweeper Sweeper, logger *zap.Logger) (*MaintenanceWorker, error) {
	opts := redisOpts()

	srv := asynq.NewServer(opts, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{"maintenance": 1},
		Logger:      logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMaintenanceSweep, HandleSweep(sweeper, logger))

	const maxAttempts = 5
	for attempt := 1; ; attempt++ {
		err := srv.Start(mux)
		if err == nil {
			break
		}
		logger.Warn("Maintenance worker failed to start", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == maxAttempts {
			return nil, fmt.Errorf("start maintenance worker: %w", err)
		}
		time.Sleep(time.Duration(attempt*2) * time.Second)
	}

	scheduler := asynq.NewScheduler(opts, &asynq.SchedulerOpts{
		Location: config.AppConfig.Location(),
		Logger:   logger.Sugar(),
	})
	task := asynq.NewTask(TypeMaintenanceSweep, nil)
	if _, err := scheduler.Register(config.AppConfig.SweepSchedule, task,
		asynq.Queue("maintenance"), asynq.Unique(time.Minute), asynq.MaxRetry(2)); err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("register sweep %q: %w", config.AppConfig.SweepSchedule, err)
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	logger.Info("Maintenance sweep scheduled", zap.String("schedule", config.AppConfig.SweepSchedule))
	return &MaintenanceWorker{server: srv, scheduler: scheduler, logger: logger}, nil
}

func (w *MaintenanceWorker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("Maintenance worker stopped")
}

func HandleSweep(sweeper Sweeper, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		expired, err := sweeper.ExpireStale(ctx)
		if err != nil {
			logger.Error("Maintenance sweep failed", zap.Int("expired", expired), zap.Error(err))
			return err
		}
		if expired > 0 {
			logger.Info("Expired stale group requests", zap.Int("count", expired))
		}
		return nil
	}
}
