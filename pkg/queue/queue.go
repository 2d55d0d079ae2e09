package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotRunning     = errors.New("queue not running")
	ErrAlreadyRunning = errors.New("queue already running")
)

// Config is shared by both queue implementations.
type Config struct {
	Workers    int
	QueueSize  int           // local queue buffer
	RetryLimit int           // retries after the first attempt
	RetryDelay time.Duration // delay before a retry
	RetryPoll  time.Duration // how often due retries are promoted (redis)
}

func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	if out.RetryPoll <= 0 {
		out.RetryPoll = time.Second
	}
	return &out
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return b, nil
	}
}
