package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketMonitor/pkg/logger"
)

// LocalQueue runs jobs in-process on a buffered channel. Retries are delayed
// in memory and dropped with a log line once RetryLimit is exhausted.
type LocalQueue struct {
	log    *logger.Logger
	config *Config

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	msgs    chan Message

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewLocalQueue(lgr *logger.Logger, config *Config) *LocalQueue {
	cfg := config.withDefaults()
	return &LocalQueue{
		log:    lgr.With("local-queue"),
		config: cfg,
		jobs:   make(map[string]Job),
		msgs:   make(chan Message, cfg.QueueSize),
	}
}

func (q *LocalQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

func (q *LocalQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return ErrAlreadyRunning
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return nil
}

func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("local queue stop: %w", ctx.Err())
	}
}

// Enqueue fails instead of blocking when the buffer is full.
func (q *LocalQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()
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
	return q.push(Message{Type: msgType, Payload: body, Timestamp: time.Now().UTC()})
}

func (q *LocalQueue) push(msg Message) error {
	select {
	case q.msgs <- msg:
		return nil
	default:
		return fmt.Errorf("local queue full (%d)", cap(q.msgs))
	}
}

func (q *LocalQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(msg)
		}
	}
}

func (q *LocalQueue) process(msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	err := job.Handle(q.ctx, msg.Payload)
	if err == nil || q.ctx.Err() != nil {
		return
	}
	if msg.Attempts >= q.config.RetryLimit {
		q.log.Error("job failed, giving up", logger.String("job", job.Name()), logger.Error(err))
		return
	}
	msg.Attempts++
	time.AfterFunc(q.config.RetryDelay, func() {
		if q.ctx.Err() != nil {
			return
		}
		if perr := q.push(msg); perr != nil {
			q.log.Warn("retry dropped", logger.String("job", job.Name()), logger.Error(perr))
		}
	})
}

var _ Queue = (*LocalQueue)(nil)
