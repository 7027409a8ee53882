package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"SensorPull/internal/domain/models"
	drepo "SensorPull/internal/domain/repository"
	applogger "SensorPull/pkg/logger"
)

const (
	FrameBatch    = "batch"
	FrameForecast = "forecast"
)

// Frame is one JSON message pushed to stream clients.
type Frame struct {
	Type     string                `json:"type"`
	ChartID  int64                 `json:"chart_id"`
	Batch    *models.Batch         `json:"batch,omitempty"`
	Forecast *models.ForecastState `json:"forecast,omitempty"`
}

// Hub pushes delivered batches and fresh forecasts to websocket clients watching a chart.
// It is a bus subscriber and a forecast listener at the same time. Slow clients lose
// frames instead of slowing down the bus.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}

	upgrader     websocket.Upgrader
	metrics      drepo.Metrics
	log          *applogger.Logger
	pingInterval time.Duration
	writeTimeout time.Duration
}

type client struct {
	chartID int64
	conn    *websocket.Conn
	send    chan Frame
	done    chan struct{}
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Option configures Hub.
type Option func(*Hub)

// WithPingInterval sets how often clients are pinged; pongs must arrive within twice that.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithAllowedOrigins accepts upgrades whose Origin header is in origins; "*" accepts any.
// Requests without an Origin header (non-browser clients) are always accepted.
func WithAllowedOrigins(origins ...string) Option {
	return WithCheckOrigin(func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	})
}

// NewHub creates an empty hub.
func NewHub(metrics drepo.Metrics, log *applogger.Logger, opts ...Option) *Hub {
	if log == nil {
		log = applogger.Nop()
	}
	h := &Hub{
		clients: make(map[int64]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		metrics:      metrics,
		log:          log,
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleBatch forwards b to the clients of b.ChartID.
func (h *Hub) HandleBatch(_ context.Context, b models.Batch) error {
	h.broadcast(b.ChartID, Frame{Type: FrameBatch, ChartID: b.ChartID, Batch: &b})
	return nil
}

// OnForecast forwards state to the clients of state.ChartID.
func (h *Hub) OnForecast(state models.ForecastState) {
	h.broadcast(state.ChartID, Frame{Type: FrameForecast, ChartID: state.ChartID, Forecast: &state})
}

func (h *Hub) broadcast(chartID int64, f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[chartID] {
		select {
		case c.send <- f:
		default:
			h.metrics.RecordError("stream_drop")
		}
	}
}

// Clients returns the number of clients watching chartID.
func (h *Hub) Clients(chartID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[chartID])
}

// Serve upgrades the request and streams frames of chartID until the client goes away.
// buffer is the number of frames queued per client before frames are dropped.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, chartID int64, buffer int) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	if buffer <= 0 {
		buffer = 64
	}
	c := &client{chartID: chartID, conn: conn, send: make(chan Frame, buffer), done: make(chan struct{})}
	h.register(c)
	defer h.unregister(c)

	h.log.Debug("stream client connected",
		applogger.Int64("chart_id", chartID),
		applogger.String("remote", r.RemoteAddr),
	)

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.chartID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.chartID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.chartID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.chartID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// readLoop discards client messages and keeps the read deadline fresh on pongs.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteJSON(f); err != nil {
				h.log.Debug("stream write failed", applogger.Int64("chart_id", c.chartID), applogger.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
