package service

import (
	"context"
	"sync"
	"time"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
)

// ScheduleProcessor is the part of DeliveryService the worker needs.
type ScheduleProcessor interface {
	ProcessSchedule(ctx context.Context, scheduleID int64) (*SendResult, error)
}

// ProcessObserver records the outcome of each processed schedule.
type ProcessObserver interface {
	ObserveProcessed(result string, elapsed time.Duration)
}

const (
	ResultProcessed = "processed"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// Worker processes due schedule ids. Each id is handled independently; an
// error is logged and reported, never retried.
type Worker struct {
	Processor   ScheduleProcessor
	Observer    ProcessObserver
	Logger      *logger.Logger
	Concurrency int
}

func NewWorker(processor ScheduleProcessor, observer ProcessObserver, logg *logger.Logger, concurrency int) *Worker {
	return &Worker{
		Processor:   processor,
		Observer:    observer,
		Logger:      logg,
		Concurrency: concurrency,
	}
}

// Start drains jobs with Concurrency goroutines until the channel closes or
// ctx is cancelled, then waits for in-flight schedules.
func (w *Worker) Start(ctx context.Context, jobs <-chan int64) {
	n := w.Concurrency
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-jobs:
					if !ok {
						return
					}
					_ = w.Handle(ctx, id)
				}
			}
		}()
	}
	wg.Wait()
}

// Handle processes one schedule id.
func (w *Worker) Handle(ctx context.Context, scheduleID int64) error {
	ctx = w.Logger.WithField(ctx, "schedule_id", scheduleID)
	start := time.Now()

	result, err := w.Processor.ProcessSchedule(ctx, scheduleID)
	outcome := ResultProcessed
	switch {
	case err == nil:
		w.Logger.Info(w.Logger.WithFields(ctx, map[string]any{
			"campaign_id": result.CampaignID,
			"recipients":  result.Recipients,
		}), "scheduled campaign delivered")
	case appErrors.Is(err, appErrors.CodeNotDraft):
		// already dispatched by another worker or sent another way
		outcome = ResultSkipped
		w.Logger.Warn(ctx, err.Error())
	default:
		outcome = ResultFailed
		w.Logger.Error(ctx, "scheduled campaign failed", err)
	}

	if w.Observer != nil {
		w.Observer.ObserveProcessed(outcome, time.Since(start))
	}
	return err
}
