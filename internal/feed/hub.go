// Package feed streams simulation events to spectators over websockets.
package feed

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/sim"
)

const (
	// KindSnapshot is the kind of the frame sent once on connect.
	KindSnapshot = "snapshot"

	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512

	// DefaultStateRate is the state_updated frames per second per client.
	DefaultStateRate = 10
	// DefaultSendBuffer is the per-client frame queue length.
	DefaultSendBuffer = 256
)

// Frame is the MessagePack envelope of every message.
type Frame struct {
	Kind string `msgpack:"kind"`
	// At is the simulation time in Unix milliseconds.
	At   int64  `msgpack:"at"`
	Data any    `msgpack:"data"`
}

// Metrics receives feed measurements. *observability.Metrics satisfies it.
type Metrics interface {
	FeedConnected(delta int)
	FeedFrame()
	FeedDropped(reason string)
}

type nopMetrics struct{}

func (nopMetrics) FeedConnected(int)  {}
func (nopMetrics) FeedFrame()         {}
func (nopMetrics) FeedDropped(string) {}

// Snapshots supplies the state sent to a client on connect. *sim.Engine
// satisfies it.
type Snapshots interface {
	Snapshot() sim.Snapshot
}

// HubConfig tunes a Hub. Zero fields take defaults.
type HubConfig struct {
	StateRate  float64
	SendBuffer int
}

// Hub is a bus observer fanning every event out to connected spectators.
// State updates are throttled per client; a client whose queue is full is
// disconnected.
type Hub struct {
	logger    *zap.Logger
	clk       clock.Clock
	metrics   Metrics
	snapshots Snapshots
	cfg       HubConfig
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	remote  string
}

// NewHub creates a Hub. metrics and snapshots may be nil.
//
// Precondition: logger and clk must be non-nil.
func NewHub(cfg HubConfig, clk clock.Clock, logger *zap.Logger, metrics Metrics, snapshots Snapshots) *Hub {
	if cfg.StateRate <= 0 {
		cfg.StateRate = DefaultStateRate
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Hub{
		logger:    logger.Named("feed"),
		clk:       clk,
		metrics:   metrics,
		snapshots: snapshots,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Spectators are read-only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) newClient(conn *websocket.Conn, remote string) *client {
	return &client{
		conn:    conn,
		send:    make(chan []byte, h.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.StateRate), 1),
		remote:  remote,
	}
}

// Clients returns the number of connected spectators.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// OnEvent encodes e once and queues it for every client.
func (h *Hub) OnEvent(e event.Event) error {
	now := h.clk.Now()
	msg, err := encodeFrame(Frame{Kind: string(e.Kind()), At: now.UnixMilli(), Data: e})
	if err != nil {
		return err
	}
	_, throttled := e.(event.StateUpdated)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if throttled && !c.limiter.AllowN(now, 1) {
			h.metrics.FeedDropped("throttled")
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Info("dropping slow spectator", zap.String("remote", c.remote))
			h.metrics.FeedDropped("slow_client")
			h.removeLocked(c)
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := h.newClient(conn, r.RemoteAddr)
	if h.snapshots != nil {
		frame := Frame{Kind: KindSnapshot, At: h.clk.Now().UnixMilli(), Data: h.snapshots.Snapshot()}
		if msg, err := encodeFrame(frame); err == nil {
			c.send <- msg
		} else {
			h.logger.Warn("encoding snapshot failed", zap.Error(err))
		}
	}
	if !h.attach(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Info("spectator connected", zap.String("remote", c.remote))
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) attach(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.FeedConnected(1)
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes c's queue, which ends its write pump.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.FeedConnected(-1)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// readPump discards client input and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("spectator read failed", zap.String("remote", c.remote), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.logger.Info("spectator disconnected", zap.String("remote", c.remote))
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				h.remove(c)
				return
			}
			h.metrics.FeedFrame()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// encodeFrame marshals f, falling back to json tags for types that carry
// no msgpack tags.
func encodeFrame(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFrame unmarshals a frame, leaving Data as generic maps and slices.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	err := msgpack.Unmarshal(b, &f)
	return f, err
}
