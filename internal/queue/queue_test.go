package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJob(t *testing.T) {
	body, err := Job{ScheduleID: 42}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"schedule_id":42}`, string(body))

	job, err := DecodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, int64(42), job.ScheduleID)

	_, err = DecodeJob([]byte(`{"schedule_id":0}`))
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`not json`))
	assert.Error(t, err)
}

func TestInMemoryQueue_PublishWithoutSubscribers(t *testing.T) {
	q := NewInMemoryQueue(nil)
	err := q.Publish(context.Background(), TopicDueSchedules, Job{ScheduleID: 1})
	assert.Error(t, err)
}

func TestInMemoryQueue_FanOutWithoutRetries(t *testing.T) {
	q := NewInMemoryQueue(nil)
	ctx := context.Background()

	var mu sync.Mutex
	got := map[string][]int64{}
	record := func(name string, err error) Handler {
		return func(_ context.Context, job Job) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], job.ScheduleID)
			return err
		}
	}
	require.NoError(t, q.Subscribe(ctx, TopicDueSchedules, record("a", nil)))
	require.NoError(t, q.Subscribe(ctx, TopicDueSchedules, record("b", errors.New("boom"))))
	require.NoError(t, q.Subscribe(ctx, "other", record("c", nil)))

	require.NoError(t, q.Publish(ctx, TopicDueSchedules, Job{ScheduleID: 7}))
	require.NoError(t, q.Close())

	assert.Equal(t, []int64{7}, got["a"])
	assert.Equal(t, []int64{7}, got["b"], "a failing handler runs once")
	assert.Empty(t, got["c"])
}

type fakeAcker struct {
	acks, nacks, rejects int32
}

func (f *fakeAcker) Ack(tag uint64, multiple bool) error {
	atomic.AddInt32(&f.acks, 1)
	return nil
}

func (f *fakeAcker) Nack(tag uint64, multiple bool, requeue bool) error {
	atomic.AddInt32(&f.nacks, 1)
	return nil
}

func (f *fakeAcker) Reject(tag uint64, requeue bool) error {
	atomic.AddInt32(&f.rejects, 1)
	return nil
}

func TestAMQPQueue_DeliverAlwaysAcks(t *testing.T) {
	q := &AMQPQueue{}
	ctx := context.Background()

	tests := []struct {
		name     string
		body     string
		err      error
		wantCall bool
	}{
		{"handled", `{"schedule_id":3}`, nil, true},
		{"handler failed", `{"schedule_id":3}`, errors.New("delivery failed"), true},
		{"malformed body", `{`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acker := &fakeAcker{}
			called := false
			q.deliver(ctx, amqp.Delivery{Acknowledger: acker, Body: []byte(tt.body)}, func(_ context.Context, job Job) error {
				called = true
				assert.Equal(t, int64(3), job.ScheduleID)
				return tt.err
			})
			assert.Equal(t, tt.wantCall, called)
			assert.Equal(t, int32(1), acker.acks)
			assert.Zero(t, acker.nacks)
			assert.Zero(t, acker.rejects)
		})
	}
}
