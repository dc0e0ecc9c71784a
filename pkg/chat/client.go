package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crewchat/pkg/logger"
	"crewchat/pkg/session"
)

// client binds one websocket connection to its registered session and
// runs the read/write pumps.
type client struct {
	srv  *Server
	conn *websocket.Conn
	sess *session.Session

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(srv *Server, conn *websocket.Conn) *client {
	return &client{
		srv:  srv,
		conn: conn,
		send: make(chan []byte, srv.sendBuffer),
		done: make(chan struct{}),
	}
}

// TryPush hands a frame to the write pump without blocking. A full
// buffer means the connection cannot keep up and the push is refused.
func (c *client) TryPush(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *client) readPump() {
	defer c.srv.drop(c, "closed")
	c.conn.SetReadLimit(c.srv.maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.srv.sessionTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.srv.sessionTimeout))
		c.sess.Touch()
		return nil
	})
	for {
		t, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws_read_error", "session", c.sess.ID, "error", err)
			}
			return
		}
		if t != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(c.srv.sessionTimeout))
		c.sess.Touch()
		c.srv.handleFrame(c, data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.srv.sessionTimeout * 8 / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.pushTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.pushTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
