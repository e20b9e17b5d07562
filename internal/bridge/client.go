package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/flowview/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

type client struct {
	id      string
	conn    *websocket.Conn
	limiter *rate.Limiter

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(id string, conn *websocket.Conn, limiter *rate.Limiter) *client {
	return &client{
		id:      id,
		conn:    conn,
		limiter: limiter,
		send:    make(chan []byte, sendBuffer),
	}
}

// enqueue reports false when the send buffer is full or the client is gone.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) readPump(ctx context.Context, log logging.Logger, route func(context.Context, Inbound)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn(ctx, "websocket read failed", logging.Err(err))
			}
			return
		}
		msg, err := decode(data)
		if err != nil {
			log.Debug(ctx, "malformed client message", logging.Err(err))
			continue
		}
		if throttled(msg.Type) && !c.limiter.Allow() {
			log.Debug(ctx, "client message throttled", logging.String("type", msg.Type))
			continue
		}
		route(ctx, msg)
	}
}

func (c *client) writePump(ctx context.Context, log logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug(ctx, "websocket write failed", logging.Err(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// throttled reports whether messages of type t are rate limited. Only the
// continuous viewport streams are; discrete gestures always reach the view.
func throttled(t string) bool {
	return t == TypeZoom || t == TypePositions
}
