package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"MarketMonitor/pkg/logger"

	"github.com/gorilla/websocket"
)

// Envelope is the frame pushed to subscribers.
type Envelope struct {
	Type   string      `json:"type"`
	Market string      `json:"market"`
	SentAt time.Time   `json:"sentAt"`
	Data   interface{} `json:"data"`
}

type Options struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(r *http.Request) bool
}

// Hub fans market updates out to websocket clients subscribed to one market
// key each. The last frame per key is replayed to new subscribers.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.RWMutex
	subs    map[string]map[*client]struct{}
	latest  map[string][]byte
	stopped bool
}

func NewHub(opts Options, log *logger.Logger) *Hub {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Hub{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     check,
		},
		log:    log.With("stream"),
		subs:   make(map[string]map[*client]struct{}),
		latest: make(map[string][]byte),
	}
}

// Serve upgrades the request and subscribes the connection to key until it
// disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, key string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{hub: h, conn: conn, key: key, send: make(chan []byte, h.opts.SendBuffer)}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		return conn.Close()
	}

	go c.writePump()
	c.readPump()
	return nil
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	set, ok := h.subs[c.key]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.key] = set
	}
	set[c] = struct{}{}
	if last, ok := h.latest[c.key]; ok {
		c.send <- last
	}
	h.log.Debug("subscriber added", logger.String("market", c.key), logger.Int("subscribers", len(set)))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[c.key]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, c.key)
	}
	close(c.send)
}

// Broadcast sends v to every subscriber of key and returns how many received
// it. Clients whose buffer is full are disconnected.
func (h *Hub) Broadcast(key string, v interface{}) int {
	frame, err := json.Marshal(Envelope{Type: "report", Market: key, SentAt: time.Now().UTC(), Data: v})
	if err != nil {
		h.log.Error("encode frame", logger.String("market", key), logger.Error(err))
		return 0
	}

	h.mu.Lock()
	h.latest[key] = frame
	var slow []*client
	sent := 0
	for c := range h.subs[key] {
		select {
		case c.send <- frame:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.log.Warn("dropping slow subscriber", logger.String("market", key))
		h.remove(c)
	}
	return sent
}

// Subscribers returns the subscriber count for key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.stopped = true
	var all []*client
	for _, set := range h.subs {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.remove(c)
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	key  string
	send chan []byte
}

// readPump only serves control frames; subscriptions are fixed by the URL.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	wait := c.hub.opts.PingInterval * 2
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	timeout := c.hub.opts.WriteTimeout
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
