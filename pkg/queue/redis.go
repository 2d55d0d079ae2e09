package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"MarketMonitor/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed job queue. Failed messages wait in a sorted set
// until their retry time and land in a dead-letter list after RetryLimit retries.
type RedisQueue struct {
	log       *logger.Logger
	config    *Config
	client    redis.UniversalClient
	keyPrefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

func NewRedisQueue(lgr *logger.Logger, config *Config, client redis.UniversalClient, opts ...RedisQueueOption) *RedisQueue {
	r := &RedisQueue{
		log:       lgr.With("redis-queue"),
		config:    config.withDefaults(),
		client:    client,
		keyPrefix: "mmon:queue",
		jobs:      make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
}

func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.running = true
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.retryLoop()

	r.log.Info("redis queue started", logger.Int("workers", r.config.Workers), logger.String("prefix", r.keyPrefix))
	return nil
}

func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("redis queue stop: %w", ctx.Err())
	}
}

func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	if !known {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Len reports queued, retrying and dead-lettered message counts.
func (r *RedisQueue) Len(ctx context.Context) (queued, retrying, dead int64, err error) {
	pipe := r.client.Pipeline()
	q := pipe.LLen(ctx, r.queueKey())
	rt := pipe.ZCard(ctx, r.retryKey())
	d := pipe.LLen(ctx, r.deadLetterKey())
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return q.Val(), rt.Val(), d.Val(), nil
}

func (r *RedisQueue) worker() {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		res, err := r.client.BRPop(r.ctx, time.Second, r.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || r.ctx.Err() != nil {
				continue
			}
			r.log.Warn("brpop", logger.Error(err))
			sleepCtx(r.ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("drop undecodable message", logger.Error(err))
			continue
		}
		r.process(msg)
	}
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(msg)
		return
	}

	err := job.Handle(r.ctx, msg.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) && r.ctx.Err() != nil {
		// shutting down; give the message back
		r.requeue(msg)
		return
	}

	msg.LastError = err.Error()
	if msg.Attempts < r.config.RetryLimit {
		msg.Attempts++
		at := time.Now().Add(r.config.RetryDelay)
		r.scheduleRetry(msg, at)
		r.log.Warn("job failed, retry scheduled",
			logger.String("job", job.Name()),
			logger.String("id", msg.ID),
			logger.Int("attempt", msg.Attempts),
			logger.Error(err),
		)
		return
	}
	r.log.Error("job failed, moved to dead letter",
		logger.String("job", job.Name()),
		logger.String("id", msg.ID),
		logger.Error(err),
	)
	r.deadLetter(msg)
}

func (r *RedisQueue) requeue(msg Message) {
	data, _ := json.Marshal(msg)
	if err := r.client.RPush(context.Background(), r.queueKey(), data).Err(); err != nil {
		r.log.Error("requeue", logger.Error(err))
	}
}

func (r *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	data, _ := json.Marshal(msg)
	err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		r.log.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	data, _ := json.Marshal(msg)
	if err := r.client.LPush(context.Background(), r.deadLetterKey(), data).Err(); err != nil {
		r.log.Error("lpush dead letter", logger.Error(err))
	}
}

func (r *RedisQueue) retryLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.RetryPoll)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue()
		}
	}
}

// promoteDue moves retries whose time has come back onto the main list.
func (r *RedisQueue) promoteDue() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		if r.ctx.Err() == nil {
			r.log.Warn("fetch due retries", logger.Error(err))
		}
		return
	}

	for _, member := range due {
		// ZRem wins once, so concurrent promoters never duplicate a message.
		removed, err := r.client.ZRem(r.ctx, r.retryKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(r.ctx, r.queueKey(), member).Err(); err != nil {
			r.log.Error("promote retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

var _ Queue = (*RedisQueue)(nil)
