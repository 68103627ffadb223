package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/varkas/roomrelay/protocol"
	"golang.org/x/time/rate"
)

// State is a connection's position in its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateActive
	StateClosing
	StateClosed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one live WebSocket connection. The read pump is the only
// reader of the socket and the write pump the only writer; everything else
// talks to the connection through the send channel.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	state    atomic.Int32
	sendOnce sync.Once
	doneOnce sync.Once

	limiter *rate.Limiter
	missed  atomic.Int64

	onClose func(connID string)
	log     *slog.Logger
}

func newClient(h *Hub, conn *websocket.Conn, id string, onClose func(connID string)) *Client {
	return &Client{
		id:      id,
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(rate.Limit(inboundRate), inboundBurst),
		onClose: onClose,
		log:     h.log,
	}
}

// ID returns the server-assigned connection id.
func (c *Client) ID() string {
	return c.id
}

// State returns the connection's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Missed returns how many broadcasts this connection has missed because its
// send buffer was full.
func (c *Client) Missed() int64 {
	return c.missed.Load()
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// closeSend closes the send channel exactly once, which makes the write
// pump send a close frame and exit. Only the hub loop calls this.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		c.setState(StateClosing)
		close(c.send)
	})
}

// finish marks the connection closed and runs the close hook. Idempotent
// under concurrent triggers: a close frame arriving as shutdown fires still
// runs the transition exactly once.
func (c *Client) finish() {
	c.doneOnce.Do(func() {
		c.setState(StateClosed)
		if c.onClose != nil {
			c.onClose(c.id)
		}
	})
}

// readPump pumps frames from the socket into the hub. It exits on close
// frames, read errors, and the shutdown signal (which closes the socket
// out from under the blocked read).
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.coord.Done():
		}
		c.conn.Close()
		c.finish()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", "conn", c.id, "err", err)
			}
			return
		}
		if !c.handleFrame(messageType, data) {
			return
		}
	}
}

// handleFrame decodes one inbound frame and reports whether the read loop
// should continue.
func (c *Client) handleFrame(messageType int, data []byte) bool {
	var msg protocol.Message
	var err error

	switch messageType {
	case websocket.TextMessage:
		msg, err = protocol.DecodeJSON(data)
	case websocket.BinaryMessage:
		msg, err = protocol.DecodeBinary(data)
	default:
		return true
	}

	if err != nil {
		if errors.Is(err, protocol.ErrUnknownOpcode) {
			// Forward compatibility: never a reason to drop the connection.
			c.log.Warn("unknown opcode ignored", "conn", c.id)
			return true
		}
		if c.State() != StateActive {
			c.log.Warn("malformed frame during handshake, dropping connection", "conn", c.id, "err", err)
			return false
		}
		c.log.Warn("malformed frame dropped", "conn", c.id, "err", err)
		return true
	}

	if !c.limiter.Allow() {
		c.log.Warn("inbound rate limit exceeded, frame dropped", "conn", c.id)
		return true
	}

	switch msg.Opcode {
	case protocol.OpcodeChatMessage:
		// Author identity is server-assigned; never trust the frame's.
		msg.Chat.AuthorID = c.id
		c.hub.Publish(msg)
	case protocol.OpcodeHello:
		// Hello is server-to-client only; ignore echoes.
	}
	return true
}

// writePump pumps frames from the send channel to the socket and keeps the
// connection alive with pings. It owns the outbound half of the socket
// exclusively.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.finish()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel: say goodbye and hang up.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
