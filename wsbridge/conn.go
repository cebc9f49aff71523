package wsbridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 << 20 // attachments travel inline as data URIs
	sendBuffer     = 256
)

// conn is one client connection. All writes go through the send channel so
// only writePump touches the socket for writing.
type conn struct {
	server *Server
	ws     *websocket.Conn
	out    chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(s *Server, ws *websocket.Conn) *conn {
	return &conn{
		server: s,
		ws:     ws,
		out:    make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *conn) readPump() {
	defer func() {
		c.server.remove(c)
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.server.logger.Debug("invalid message", "error", err)
			c.sendError("", CodeBadRequest, "invalid envelope: "+err.Error())
			continue
		}

		c.server.dispatch(c, &env)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// enqueue hands data to writePump. It never blocks: when the buffer is full
// the message is dropped.
func (c *conn) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- data:
	case <-c.done:
	default:
		c.server.logger.Warn("send buffer full, dropping message", "remote", c.ws.RemoteAddr().String())
	}
}

func (c *conn) send(env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.server.logger.Error("marshal envelope", "type", env.Type, "error", err)
		return
	}
	c.enqueue(data)
}

func (c *conn) sendError(requestID, code, message string) {
	env, err := NewError(requestID, code, message)
	if err != nil {
		return
	}
	c.send(env)
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
