package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/practicehub-backend/internal/config"
	"github.com/unclebandit/practicehub-backend/internal/db"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/queue"
	"github.com/unclebandit/practicehub-backend/internal/repository"
	"github.com/unclebandit/practicehub-backend/internal/scheduler"
	"github.com/unclebandit/practicehub-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "practicehub-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Console:     cfg.App.IsDev(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "worker exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	conn, err := db.Open(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer conn.Close()

	store := repository.NewStore(conn)
	delivery := &service.DeliveryService{Store: store, Repos: store.Repositories, Logger: logg}

	q, err := openQueue(cfg.Queue, logg)
	if err != nil {
		return err
	}
	defer q.Close()

	lock, err := openLock(ctx, cfg, logg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := scheduler.NewMetrics(reg)

	// Consumers feed a bounded channel drained by the worker pool.
	jobs := make(chan int64, cfg.Scheduler.Concurrency*4)
	if err := q.Subscribe(ctx, cfg.Queue.Name, enqueue(jobs)); err != nil {
		return err
	}
	worker := service.NewWorker(delivery, metrics, logg, cfg.Scheduler.Concurrency)

	trigger, err := scheduler.NewTrigger(scheduler.TriggerParams{
		Logger:   logg,
		Finder:   delivery,
		Queue:    q,
		Lock:     lock,
		Metrics:  metrics,
		Interval: cfg.Scheduler.Interval,
		Topic:    cfg.Queue.Name,
	})
	if err != nil {
		return err
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Scheduler.MetricsPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		worker.Start(ctx, jobs)
	}()
	go func() {
		defer wg.Done()
		_ = trigger.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		logg.Info(logg.WithField(ctx, "addr", metricsSrv.Addr), "metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server failed", err)
		}
	}()

	logg.Info(logg.WithFields(ctx, map[string]any{
		"queue":       cfg.Queue.Driver,
		"interval":    cfg.Scheduler.Interval.String(),
		"concurrency": cfg.Scheduler.Concurrency,
	}), "worker running")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}

func openQueue(cfg config.QueueConfig, logg *logger.Logger) (queue.Queue, error) {
	if cfg.Driver == config.QueueDriverAMQP {
		q, err := queue.DialAMQP(cfg.AMQPURL, logg)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	return queue.NewInMemoryQueue(logg), nil
}

// openLock uses Redis when configured so several workers can run; otherwise
// the lock only guards this process.
func openLock(ctx context.Context, cfg *config.Config, logg *logger.Logger) (scheduler.Lock, error) {
	if cfg.Redis.URL == "" {
		logg.Warn(ctx, "REDIS_URL not set; trigger lock is process-local")
		return &scheduler.LocalLock{}, nil
	}
	client, err := scheduler.OpenRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	lock, err := scheduler.NewRedisLockFromClient(client, cfg.Scheduler.LockKey, cfg.Scheduler.LockTTL)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// enqueue hands each consumed job to the worker pool, giving up when the
// consumer's context ends.
func enqueue(jobs chan<- int64) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		select {
		case jobs <- job.ScheduleID:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
