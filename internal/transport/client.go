// internal/transport/client.go
//
// One websocket connection: read loop feeding the event handler, and a
// writer goroutine draining a buffered send channel so broadcasts never
// block on a single peer.

package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 32
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex // guards closed / send-channel close
	closed bool
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{id: id, conn: conn, send: make(chan []byte, sendQueueSize)}
}

// enqueue hands a frame to the writer. A full queue means the peer is
// not keeping up; the frame is dropped and logged.
func (c *client) enqueue(frame []byte, log zerolog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("conn", c.id).Msg("send queue full, dropping frame")
	}
}

// close stops the writer and the underlying connection. Safe to call
// more than once.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// readPump decodes inbound envelopes and dispatches them until the
// connection errors or closes. On exit the hub forgets the connection
// first, then the handler runs its disconnect cleanup.
func (c *client) readPump(h *Hub, handler Handler) {
	defer func() {
		h.drop(c.id)
		handler.Disconnect(c.id)
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Str("conn", c.id).Err(err).Msg("read error")
			}
			return
		}
		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			h.log.Debug().Str("conn", c.id).Err(err).Msg("invalid frame")
			continue
		}
		handler.Dispatch(c.id, env.Event, env.Data)
	}
}

// writePump drains the send queue onto the wire until the queue closes.
func (c *client) writePump(log zerolog.Logger) {
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Debug().Str("conn", c.id).Err(err).Msg("write error")
			return
		}
	}
}
