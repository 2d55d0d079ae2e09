package server

import (
	"context"
	"testing"
	"time"

	"MarketMonitor/internal/service/ratelimit"
	"MarketMonitor/pkg/cache"
	"MarketMonitor/pkg/config"
	xhttp "MarketMonitor/pkg/http"
	"MarketMonitor/pkg/logger"
	"MarketMonitor/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Environment = "test"
	cfg.Backend.Type = "none"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestRunContextRequiresHTTP(t *testing.T) {
	app := New(testConfig(), logger.Nop(), Components{})
	assert.Error(t, app.RunContext(context.Background()))
}

func TestRunContextStopsComponents(t *testing.T) {
	log := logger.Nop()
	srv := xhttp.NewServer(xhttp.Handlers{}, log, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	q := queue.NewLocalQueue(log, &queue.Config{Workers: 1})

	app := New(testConfig(), log, Components{
		HTTP:    srv,
		Cache:   cache.NewMemoryCache(),
		Limiter: ratelimit.New(10, 10),
		Queue:   q,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunContext did not return after cancel")
	}
	assert.ErrorIs(t, q.Enqueue(context.Background(), "refresh", nil), queue.ErrNotRunning)
}
