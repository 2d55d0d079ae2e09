package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketMonitor/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refresh struct {
	Market string `json:"market"`
}

type countingJob struct {
	mu      sync.Mutex
	fail    bool
	seen    []string
	handled int
}

func (j *countingJob) Name() string { return "refresh" }
func (j *countingJob) Type() string { return "market.refresh" }

func (j *countingJob) Handle(_ context.Context, payload json.RawMessage) error {
	p, err := Decode[refresh](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.handled++
	if j.fail {
		return errors.New("upstream down")
	}
	j.seen = append(j.seen, p.Market)
	return nil
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.handled
}

func newRedisQueue(t *testing.T, cfg *Config) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(logger.Nop(), cfg, client, WithKeyPrefix("test:queue")), client
}

func stop(t *testing.T, q Queue) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestRedisQueueDelivers(t *testing.T) {
	q, _ := newRedisQueue(t, &Config{Workers: 2})
	job := &countingJob{}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	require.NoError(t, q.Enqueue(context.Background(), job.Type(), refresh{Market: "binance:BTCUSDT:1m"}))
	assert.Eventually(t, func() bool { return job.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"binance:BTCUSDT:1m"}, job.seen)
}

func TestRedisQueueRetriesThenDeadLetters(t *testing.T) {
	q, _ := newRedisQueue(t, &Config{RetryLimit: 2, RetryDelay: time.Millisecond, RetryPoll: 20 * time.Millisecond})
	job := &countingJob{fail: true}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	require.NoError(t, q.Enqueue(context.Background(), job.Type(), refresh{Market: "x"}))

	assert.Eventually(t, func() bool {
		_, _, dead, err := q.Len(context.Background())
		return err == nil && dead == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 3, job.count())
}

func TestRedisQueueRejectsUnknownType(t *testing.T) {
	q, _ := newRedisQueue(t, nil)
	assert.ErrorIs(t, q.Enqueue(context.Background(), "x", nil), ErrNotRunning)

	require.NoError(t, q.Start())
	defer stop(t, q)
	assert.Error(t, q.Enqueue(context.Background(), "x", nil))
	assert.ErrorIs(t, q.Start(), ErrAlreadyRunning)
}

func TestLocalQueueRetries(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), &Config{RetryLimit: 1, RetryDelay: time.Millisecond})
	job := &countingJob{fail: true}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	require.NoError(t, q.Enqueue(context.Background(), job.Type(), refresh{Market: "x"}))
	assert.Eventually(t, func() bool { return job.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, job.count())
}

func TestDecode(t *testing.T) {
	v, err := Decode[refresh](json.RawMessage(`{"market":"m"}`))
	require.NoError(t, err)
	assert.Equal(t, "m", v.Market)

	_, err = Decode[refresh](json.RawMessage(`nope`))
	assert.Error(t, err)
}
