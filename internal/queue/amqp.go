package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/unclebandit/practicehub-backend/internal/logger"
)

// AMQPQueue publishes and consumes jobs through RabbitMQ. Each topic maps to
// a durable queue of the same name on the default exchange.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	logg *logger.Logger

	mu       sync.Mutex
	declared map[string]bool
	consumer sync.WaitGroup
}

func DialAMQP(url string, logg *logger.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPQueue{conn: conn, ch: ch, logg: logg, declared: map[string]bool{}}, nil
}

func (q *AMQPQueue) declare(topic string) error {
	if q.declared[topic] {
		return nil
	}
	_, err := q.ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	q.declared[topic] = true
	return nil
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, job Job) error {
	body, err := job.Encode()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.declare(topic); err != nil {
		return err
	}
	err = q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the topic until ctx is cancelled or the channel closes.
// Every delivery is acked once handled, including failures.
func (q *AMQPQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	q.mu.Lock()
	if err := q.declare(topic); err != nil {
		q.mu.Unlock()
		return err
	}
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", topic, err)
	}

	q.consumer.Add(1)
	go func() {
		defer q.consumer.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				q.deliver(ctx, d, handler)
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) deliver(ctx context.Context, d amqp.Delivery, handler Handler) {
	job, err := DecodeJob(d.Body)
	if err != nil {
		q.logg.Error(ctx, "invalid job", err)
		q.ack(ctx, d)
		return
	}
	jobCtx := q.logg.WithField(ctx, "schedule_id", job.ScheduleID)
	if err := handler(jobCtx, job); err != nil {
		q.logg.Error(jobCtx, "job failed", err)
	}
	q.ack(jobCtx, d)
}

func (q *AMQPQueue) ack(ctx context.Context, d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		q.logg.Error(ctx, "ack failed", err)
	}
}

func (q *AMQPQueue) Close() error {
	var firstErr error
	if q.ch != nil {
		firstErr = q.ch.Close()
	}
	q.consumer.Wait()
	if q.conn != nil {
		if err := q.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
