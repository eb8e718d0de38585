package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"okeanchat/internal/domain"
	"okeanchat/internal/events"
	"okeanchat/internal/hub"
	"okeanchat/internal/observability/metrics"
)

type Options struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongTimeout <= o.PingInterval {
		o.PongTimeout = 2 * o.PingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	return o
}

// Client is one websocket connection. Frames are queued by Send and written
// by a single writer goroutine, which keeps per-channel order.
type Client struct {
	id   string
	user domain.UserID
	conn *websocket.Conn
	opts Options

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	muted map[int64]bool

	log *slog.Logger
}

var _ hub.GroupSubscriber = (*Client)(nil)

func newClient(conn *websocket.Conn, user domain.UserID, opts Options) *Client {
	id := uuid.NewString()
	return &Client{
		id:    id,
		user:  user,
		conn:  conn,
		opts:  opts,
		send:  make(chan []byte, opts.SendBuffer),
		done:  make(chan struct{}),
		muted: make(map[int64]bool),
		log:   slog.Default().With("component", "ws", "conn_id", id, "user_id", user),
	}
}

func (c *Client) ID() string            { return c.id }
func (c *Client) UserID() domain.UserID { return c.user }

// Send never blocks. A client that cannot keep up is closed, which removes
// it from the registry once its read loop exits.
func (c *Client) Send(env events.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return hub.ErrChannelClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn("send buffer full, closing connection", "event", env.Event)
		metrics.PushEventsTotal.WithLabelValues(env.Event, "overflow").Inc()
		c.Close()
		return hub.ErrSendBufferFull
	}
}

func (c *Client) WantsGroup(groupID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.muted[groupID]
}

func (c *Client) JoinGroup(groupID int64) {
	c.mu.Lock()
	delete(c.muted, groupID)
	c.mu.Unlock()
}

func (c *Client) LeaveGroup(groupID int64) {
	c.mu.Lock()
	c.muted[groupID] = true
	c.mu.Unlock()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("write failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// readPump feeds text frames to handle until the peer goes away, a pong is
// missed or the client is closed.
func (c *Client) readPump(handle func(raw []byte)) {
	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		typ, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read failed", "error", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		handle(raw)
	}
}
