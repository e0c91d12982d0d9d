package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chess-vn/rpsarena/pkg/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// connection owns one client's duplex channel. Outbound frames go through
// the send queue so a slow socket never blocks a room lane.
type connection struct {
	id   string
	ws   *websocket.Conn
	cfg  ConnConfig
	send chan []byte

	room     atomic.Pointer[Room]
	lastSeen atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, cfg ConnConfig) *connection {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 1
	}
	c := &connection{
		id:   uuid.New().String(),
		ws:   ws,
		cfg:  cfg,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *connection) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *connection) currentRoom() *Room {
	return c.room.Load()
}

func (c *connection) attach(r *Room) {
	c.room.Store(r)
}

// detach clears the association only if it still points at r.
func (c *connection) detach(r *Room) {
	c.room.CompareAndSwap(r, nil)
}

// Send queues data for the write pump. It fails once the connection is
// closed or when the client is too slow to drain its queue.
func (c *connection) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return fmt.Errorf("%w: send buffer full", ErrConnectionClosed)
	}
}

func (c *connection) sendError(err error) {
	if sendErr := c.Send(errorMessage(err)); sendErr != nil {
		logging.Debug("failed to deliver error",
			zap.String("conn_id", c.id),
			zap.Error(sendErr),
		)
	}
}

func (c *connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *connection) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) remoteAddress() string {
	if c.ws == nil {
		return "memory"
	}
	return c.ws.RemoteAddr().String()
}

// readPump feeds inbound frames to the dispatcher in arrival order and runs
// the disconnect transition when the socket goes away.
func (c *connection) readPump(d *Dispatcher) {
	defer func() {
		d.Disconnect(c)
		c.Close()
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				logging.Info("connection closed gracefully",
					zap.String("conn_id", c.id),
					zap.String("remote_address", c.remoteAddress()),
				)
			} else {
				logging.Info("connection dropped",
					zap.String("conn_id", c.id),
					zap.String("remote_address", c.remoteAddress()),
					zap.Error(err),
				)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		d.Dispatch(c, message)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Info("failed to write message",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout),
			)
			return
		}
	}
}

// flush writes whatever is still queued, best effort.
func (c *connection) flush() {
	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
