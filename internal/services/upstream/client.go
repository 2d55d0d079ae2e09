package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"MarketMonitor/internal/domain/repository"
	xhttp "MarketMonitor/pkg/http"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/metrics"

	"github.com/sony/gobreaker"
)

// ErrToolFailed matches every error where the upstream answered success=false.
var ErrToolFailed = errors.New("upstream: tool failed")

// ToolError carries the message the upstream returned for a failed tool.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("upstream tool %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Is(target error) bool {
	return target == ErrToolFailed
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

type Option func(*ToolClient)

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *ToolClient) { c.timeout = d }
}

// WithRetry sets the number of attempts and the linear backoff step.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *ToolClient) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// WithBreaker opens the circuit after failures consecutive transport errors
// and probes again after openFor.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *ToolClient) {
		c.breakerFailures = failures
		c.breakerOpenFor = openFor
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *ToolClient) { c.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *ToolClient) { c.log = l }
}

// ToolClient calls tools on the upstream analytics API.
type ToolClient struct {
	baseURL         string
	timeout         time.Duration
	attempts        int
	backoff         time.Duration
	breakerFailures uint32
	breakerOpenFor  time.Duration

	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	metrics repository.Metrics
	log     *logger.Logger
}

func NewToolClient(baseURL string, opts ...Option) *ToolClient {
	c := &ToolClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		timeout:         300 * time.Second,
		attempts:        1,
		backoff:         200 * time.Millisecond,
		breakerFailures: 5,
		breakerOpenFor:  30 * time.Second,
		metrics:         metrics.Nop{},
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts < 1 {
		c.attempts = 1
	}

	c.client = xhttp.NewClient(xhttp.WithTimeout(c.timeout))
	failures := c.breakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Timeout:     c.breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A tool answering success=false means the upstream is reachable.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrToolFailed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("upstream circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

// BaseURL is reported by the health endpoint.
func (c *ToolClient) BaseURL() string {
	return c.baseURL
}

// CallTool posts params to /api/tools/{tool} and decodes the result into dest.
func (c *ToolClient) CallTool(ctx context.Context, tool string, params interface{}, dest interface{}) error {
	start := time.Now()
	err := c.callWithRetry(ctx, tool, params, dest)
	c.metrics.RecordUpstreamCall(tool, time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Debug("upstream call failed", logger.String("tool", tool), logger.Error(err))
	}
	return err
}

func (c *ToolClient) callWithRetry(ctx context.Context, tool string, params interface{}, dest interface{}) error {
	var err error
	for i := 1; i <= c.attempts; i++ {
		_, err = c.breaker.Execute(func() (interface{}, error) {
			return nil, c.callOnce(ctx, tool, params, dest)
		})
		if err == nil || !retryable(err) || i == c.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * c.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil && !errors.Is(err, ErrToolFailed) {
		return fmt.Errorf("call %s: %w", tool, err)
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrToolFailed) || errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func (c *ToolClient) callOnce(ctx context.Context, tool string, params interface{}, dest interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}
	var env envelope
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/api/tools/" + url.PathEscape(tool),
		Body:   params,
	}, &env)
	if err != nil {
		return err
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "upstream API error"
		}
		return &ToolError{Tool: tool, Message: msg}
	}
	if dest == nil {
		return nil
	}
	if raw, ok := dest.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], env.Result...)
		return nil
	}
	if err := json.Unmarshal(env.Result, dest); err != nil {
		return fmt.Errorf("decode %s result: %w", tool, err)
	}
	return nil
}

// ListTools fetches the tool catalogue. A non-JSON body is returned as a JSON string.
func (c *ToolClient) ListTools(ctx context.Context) (json.RawMessage, error) {
	var body []byte
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/tools",
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	if json.Valid(body) {
		return body, nil
	}
	quoted, _ := json.Marshal(string(body))
	return quoted, nil
}
