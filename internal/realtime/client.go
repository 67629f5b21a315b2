// Package realtime maintains the single push channel from the backend and
// dispatches named events to registered handlers.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
)

// Status is the connection state of the channel.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

const (
	// DefaultPath is where the backend mounts its Socket.IO endpoint.
	DefaultPath = "/ws/socket.io/"
	// engineIOVersion is the Engine.IO protocol revision spoken on the wire.
	engineIOVersion = "4"
	// DefaultReconnectAttempts bounds consecutive failed (re)connections.
	DefaultReconnectAttempts = 10
	// DefaultReconnectDelay separates reconnection attempts.
	DefaultReconnectDelay = 500 * time.Millisecond
)

// AnyEvent registers a handler for every event name.
const AnyEvent = "*"

// Handler receives one event. It runs on the read-loop goroutine.
type Handler func(ev *core.Event)

// Config configures a Client.
type Config struct {
	// URL is the full ws:// or wss:// endpoint.
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Dialer            *websocket.Dialer
	Logger            *slog.Logger
}

// DeriveURL turns an HTTP base URL into the realtime endpoint: http becomes
// ws, https becomes wss, a trailing /api namespace is dropped and path is
// appended. The Engine.IO query (EIO=4, transport=websocket) is added unless
// path already carries it.
func DeriveURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil {
		return "", fmt.Errorf("parse realtime base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported realtime url scheme %q", u.Scheme)
	}
	if path == "" {
		path = DefaultPath
	}
	p, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse realtime path: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/api") + "/" + strings.TrimLeft(p.Path, "/")

	q := p.Query()
	if q.Get("EIO") == "" {
		q.Set("EIO", engineIOVersion)
	}
	if q.Get("transport") == "" {
		q.Set("transport", "websocket")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Client is one shared realtime connection. Connect is idempotent and the
// connection is reestablished automatically until Disconnect is called.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	attempts int
	delay    time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}

	hmu      sync.RWMutex
	handlers map[string]map[uint64]Handler
	nextID   uint64
}

// New creates a disconnected Client.
func New(cfg Config) *Client {
	c := &Client{
		url:      cfg.URL,
		dialer:   cfg.Dialer,
		attempts: cfg.ReconnectAttempts,
		delay:    cfg.ReconnectDelay,
		logger:   cfg.Logger,
		status:   StatusDisconnected,
		handlers: make(map[string]map[uint64]Handler),
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.attempts <= 0 {
		c.attempts = DefaultReconnectAttempts
	}
	if c.delay <= 0 {
		c.delay = DefaultReconnectDelay
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Connect starts the background connection loop. It returns immediately;
// calling it while the loop is running is a no-op. The loop ends when ctx
// is done, Disconnect is called, or reconnection attempts are exhausted.
func (c *Client) Connect(ctx context.Context) error {
	if c.url == "" {
		return fmt.Errorf("realtime url is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.status = StatusConnecting

	go c.run(loopCtx, done)
	return nil
}

// Disconnect closes the connection and stops reconnection. It blocks until
// the loop has exited and is safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// On registers h for the named event (or AnyEvent) and returns a function
// that removes it. The returned function is idempotent.
func (c *Client) On(event string, h Handler) (off func()) {
	c.hmu.Lock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]Handler)
	}
	c.handlers[event][id] = h
	c.hmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.hmu.Lock()
			delete(c.handlers[event], id)
			if len(c.handlers[event]) == 0 {
				delete(c.handlers, event)
			}
			c.hmu.Unlock()
		})
	}
}

// HandlerCount returns the number of handlers registered for event.
func (c *Client) HandlerCount(event string) int {
	c.hmu.RLock()
	defer c.hmu.RUnlock()
	return len(c.handlers[event])
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.status = StatusDisconnected
		if c.cancel != nil {
			c.cancel()
		}
		c.cancel = nil
		c.done = nil
		c.mu.Unlock()
		close(done)
	}()

	failures := 0
	for {
		c.setStatus(StatusConnecting)
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			var joined bool
			joined, err = c.session(ctx, conn)
			if joined {
				failures = 0
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("realtime channel closed")
			return
		}

		c.setStatus(StatusDisconnected)
		failures++
		if failures > c.attempts {
			c.logger.Error("realtime channel giving up", "attempts", c.attempts, "error", err)
			return
		}
		metrics.RealtimeReconnects.Inc()
		c.logger.Warn("realtime channel lost, reconnecting",
			"attempt", failures,
			"delay", c.delay,
			"error", err,
		)

		timer := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one Socket.IO session over conn: it completes the Engine.IO
// handshake, joins the default namespace, answers pings and dispatches
// events until the connection fails, the server disconnects, or ctx is
// done. joined reports whether the namespace connect was acknowledged.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) (joined bool, err error) {
	var wmu sync.Mutex
	write := func(frame []byte) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = write(frameDisconnect)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return false, err
	}
	hs, err := parseOpen(data)
	if err != nil {
		return false, err
	}
	if err := write(frameConnect); err != nil {
		return false, err
	}

	idle := hs.readDeadline()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return joined, err
		}
		kind, ev, err := parseFrame(data)
		switch kind {
		case packetPing:
			if err := write(framePong); err != nil {
				return joined, err
			}
		case packetConnected:
			if !joined {
				joined = true
				c.setStatus(StatusConnected)
				c.logger.Info("realtime channel connected", "url", c.url, "sid", hs.SID)
			}
		case packetEvent:
			c.dispatch(ev)
		case packetClose:
			if err == nil {
				err = errServerDisconnect
			}
			return joined, err
		default:
			if err != nil {
				c.logger.Debug("ignoring malformed realtime frame", "error", err)
			}
		}
	}
}

func (c *Client) dispatch(ev *core.Event) {
	metrics.RealtimeEvents.WithLabelValues(ev.Name).Inc()

	c.hmu.RLock()
	hs := make([]Handler, 0, len(c.handlers[ev.Name])+len(c.handlers[AnyEvent]))
	for _, h := range c.handlers[ev.Name] {
		hs = append(hs, h)
	}
	for _, h := range c.handlers[AnyEvent] {
		hs = append(hs, h)
	}
	c.hmu.RUnlock()

	for _, h := range hs {
		c.invoke(h, ev)
	}
}

func (c *Client) invoke(h Handler, ev *core.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("realtime handler panicked", "event", ev.Name, "panic", r)
		}
	}()
	h(ev)
}
