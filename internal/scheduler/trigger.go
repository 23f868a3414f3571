package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/queue"
)

const (
	defaultInterval = time.Minute
	// redispatch windows are this many intervals unless configured.
	defaultRedispatchCycles = 5
)

// DueFinder lists ids of schedules that should be delivered now.
type DueFinder interface {
	FindDueSchedules(ctx context.Context, now time.Time) ([]int64, error)
}

// Publisher hands a due schedule to the consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, job queue.Job) error
}

type TriggerParams struct {
	Logger   *logger.Logger
	Finder   DueFinder
	Queue    Publisher
	Lock     Lock
	Metrics  *Metrics
	Interval time.Duration
	Now      func() time.Time
	// Topic defaults to queue.TopicDueSchedules.
	Topic string
	// Redispatch is how long a published schedule that is still due waits
	// before it is published again. Defaults to five intervals.
	Redispatch time.Duration
}

// Trigger polls for due schedules on a fixed cadence and publishes each one.
// It never delivers anything itself.
type Trigger struct {
	logg     *logger.Logger
	finder   DueFinder
	queue    Publisher
	lock     Lock
	metrics  *Metrics
	interval time.Duration
	now      func() time.Time
	topic    string

	redispatch time.Duration
	mu         sync.Mutex
	published  map[int64]time.Time
}

func NewTrigger(params TriggerParams) (*Trigger, error) {
	if params.Finder == nil {
		return nil, fmt.Errorf("due finder required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	lock := params.Lock
	if lock == nil {
		lock = &LocalLock{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	topic := params.Topic
	if topic == "" {
		topic = queue.TopicDueSchedules
	}
	redispatch := params.Redispatch
	if redispatch <= 0 {
		redispatch = defaultRedispatchCycles * interval
	}
	return &Trigger{
		logg:       params.Logger,
		finder:     params.Finder,
		queue:      params.Queue,
		lock:       lock,
		metrics:    params.Metrics,
		interval:   interval,
		now:        now,
		topic:      topic,
		redispatch: redispatch,
		published:  make(map[int64]time.Time),
	}, nil
}

// Run polls immediately and then every interval until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) error {
	if _, err := t.CheckScheduledCampaigns(ctx); err != nil {
		t.logg.Error(ctx, "trigger cycle failed", err)
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logg.Info(ctx, "trigger stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.CheckScheduledCampaigns(ctx); err != nil {
				t.logg.Error(ctx, "trigger cycle failed", err)
			}
		}
	}
}

// CheckScheduledCampaigns runs one poll cycle and returns how many schedules
// were published. A publish failure for one id does not stop the others.
// Schedules published within the redispatch window are not published again
// while their first job is still in flight.
func (t *Trigger) CheckScheduledCampaigns(ctx context.Context) (int, error) {
	locked, err := t.lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		t.logg.Info(ctx, "another trigger holds the lock; skipping this cycle")
		return 0, nil
	}
	defer func() {
		if relErr := t.lock.Release(ctx); relErr != nil {
			t.logg.Error(ctx, "failed to release trigger lock", relErr)
		}
	}()
	t.metrics.IncCycle()

	now := t.now()
	due, err := t.finder.FindDueSchedules(ctx, now)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.forgetSettled(due, now)

	dispatched, inFlight := 0, 0
	var errs []error
	for _, id := range due {
		if _, ok := t.published[id]; ok {
			inFlight++
			continue
		}
		jobCtx := t.logg.WithField(ctx, "schedule_id", id)
		if err := t.queue.Publish(jobCtx, t.topic, queue.Job{ScheduleID: id}); err != nil {
			t.logg.Error(jobCtx, "failed to dispatch schedule", err)
			errs = append(errs, fmt.Errorf("schedule %d: %w", id, err))
			continue
		}
		t.published[id] = now
		dispatched++
	}
	t.metrics.AddDispatched(dispatched)

	t.logg.Info(t.logg.WithFields(ctx, map[string]any{
		"due":        len(due),
		"dispatched": dispatched,
		"in_flight":  inFlight,
	}), "trigger cycle complete")
	return dispatched, errors.Join(errs...)
}

// forgetSettled drops ids that are no longer due and ids whose redispatch
// window has passed. Callers hold t.mu.
func (t *Trigger) forgetSettled(due []int64, now time.Time) {
	stillDue := make(map[int64]struct{}, len(due))
	for _, id := range due {
		stillDue[id] = struct{}{}
	}
	for id, at := range t.published {
		if _, ok := stillDue[id]; !ok || now.Sub(at) >= t.redispatch {
			delete(t.published, id)
		}
	}
}
