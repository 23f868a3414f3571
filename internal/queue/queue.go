package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/unclebandit/practicehub-backend/internal/logger"
)

// TopicDueSchedules carries ids of schedules the trigger found due.
const TopicDueSchedules = "campaign_schedules"

// Job is the wire payload for one due schedule.
type Job struct {
	ScheduleID int64 `json:"schedule_id"`
}

func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

func DecodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ScheduleID <= 0 {
		return Job{}, fmt.Errorf("decode job: missing schedule_id")
	}
	return job, nil
}

// Handler consumes one job. A returned error is logged; jobs are never
// redelivered.
type Handler func(ctx context.Context, job Job) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, job Job) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

type subscription struct {
	ctx     context.Context
	handler Handler
}

// InMemoryQueue fans each published job out to every subscriber of the
// topic on its own goroutine. Nothing survives a restart.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]subscription
	inflight sync.WaitGroup
	logg     *logger.Logger
}

func NewInMemoryQueue(logg *logger.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]subscription),
		logg:     logg,
	}
}

// Publish sends a job to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, job Job) error {
	q.mu.Lock()
	subs := append([]subscription(nil), q.handlers[topic]...)
	q.mu.Unlock()

	if len(subs) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, sub := range subs {
		q.inflight.Add(1)
		go q.process(sub, topic, job)
	}
	return nil
}

func (q *InMemoryQueue) process(sub subscription, topic string, job Job) {
	defer q.inflight.Done()
	ctx := q.logg.WithFields(sub.ctx, map[string]any{"topic": topic, "schedule_id": job.ScheduleID})
	if err := sub.handler(ctx, job); err != nil {
		q.logg.Error(ctx, "job failed", err)
	}
}

// Subscribe adds a handler for a topic. Jobs are handed to it with ctx.
func (q *InMemoryQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for topic %s", topic)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], subscription{ctx: ctx, handler: handler})
	return nil
}

// Close waits for in-flight jobs.
func (q *InMemoryQueue) Close() error {
	q.inflight.Wait()
	return nil
}
