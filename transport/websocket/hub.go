package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/varkas/roomrelay/protocol"
	"github.com/varkas/roomrelay/registry"
	"github.com/varkas/roomrelay/shutdown"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Pending broadcasts the hub buffers before publishers start dropping.
	broadcastBuffer = 100

	// Outbound frames buffered per connection before it starts missing
	// messages.
	sendBuffer = 256
)

// DefaultMaxConns caps live connections per relay process.
const DefaultMaxConns = 1024

// Per-connection inbound budget: sustained messages per second and burst.
const (
	inboundRate  = 20
	inboundBurst = 40
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Clients are handed an arbitrary relay address by the hub, so the
		// Origin header never matches the relay's host.
		return true
	},
}

// ErrAtCapacity is returned by ServeWS when the connection registry is full.
var ErrAtCapacity = errors.New("websocket: connection capacity reached")

// Hub maintains the registry of active connections and fans messages out to
// every connection except the author's.
type Hub struct {
	conns *registry.Registry[string, *Client]

	broadcast  chan protocol.Message
	register   chan *Client
	unregister chan *Client

	coord *shutdown.Coordinator
	log   *slog.Logger

	maxConns int
}

// NewHub creates a hub wired to the given shutdown signal.
func NewHub(coord *shutdown.Coordinator, log *slog.Logger) *Hub {
	return &Hub{
		conns:      registry.New[string, *Client](registry.WithCapacity(DefaultMaxConns)),
		broadcast:  make(chan protocol.Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		coord:      coord,
		log:        log,
		maxConns:   DefaultMaxConns,
	}
}

// Run starts the hub's event loop. It processes registrations,
// unregistrations, and broadcasts until the shutdown signal fires.
// Run should be called in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)

		case <-h.coord.Done():
			h.closeAll()
			return
		}
	}
}

// ServeWS upgrades an HTTP request, assigns the connection a fresh id, and
// starts its pumps. onClose, if non-nil, runs exactly once when the
// connection reaches its closed state. The returned id is the one sent to
// the client in the Hello frame.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, onClose func(connID string)) (string, error) {
	if h.coord.Fired() {
		http.Error(w, "relay is shutting down", http.StatusServiceUnavailable)
		return "", errors.New("websocket: relay is shutting down")
	}
	if h.conns.Len() >= h.maxConns {
		http.Error(w, "relay at connection capacity", http.StatusServiceUnavailable)
		return "", ErrAtCapacity
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return "", err
	}

	client := newClient(h, conn, uuid.NewString(), onClose)
	client.setState(StateHandshaking)

	select {
	case h.register <- client:
	case <-h.coord.Done():
		conn.Close()
		return "", errors.New("websocket: relay is shutting down")
	}

	go client.writePump()
	go client.readPump()

	return client.id, nil
}

// Publish hands a message to the fan-out loop. It never blocks: when the
// broadcast buffer is full the message is dropped and logged.
func (h *Hub) Publish(msg protocol.Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast buffer full, message dropped", "author", msg.AuthorID())
	}
}

// ConnCount returns the number of registered connections.
// It is safe for concurrent use.
func (h *Hub) ConnCount() int {
	return h.conns.Len()
}

// Lookup returns the client registered under the given connection id.
// It is safe for concurrent use.
func (h *Hub) Lookup(connID string) (*Client, bool) {
	return h.conns.Get(connID)
}

func (h *Hub) registerClient(client *Client) {
	prev, replaced, err := h.conns.Insert(client.id, client)
	if err != nil {
		// Raced past the pre-upgrade capacity check; drop the connection.
		h.log.Warn("connection rejected at capacity", "conn", client.id)
		client.closeSend()
		return
	}
	if replaced {
		// Last-writer-wins on a duplicate id. With random ids this is
		// vanishingly rare; the older connection is shut down.
		h.log.Warn("duplicate connection id replaced", "conn", client.id)
		prev.closeSend()
	}

	hello, err := protocol.EncodeJSON(protocol.NewHello(client.id))
	if err != nil {
		h.log.Error("encode hello", "err", err)
		h.conns.Remove(client.id)
		client.closeSend()
		return
	}
	client.send <- hello
	client.setState(StateActive)

	h.log.Info("connection active", "conn", client.id, "connections", h.conns.Len())
}

func (h *Hub) unregisterClient(client *Client) {
	if current, ok := h.conns.Get(client.id); !ok || current != client {
		// Already removed, or the id now belongs to a newer connection.
		client.closeSend()
		return
	}
	h.conns.Remove(client.id)
	client.closeSend()
	h.log.Info("connection closed", "conn", client.id, "connections", h.conns.Len())
}

func (h *Hub) broadcastMessage(msg protocol.Message) {
	data, err := protocol.EncodeJSON(msg)
	if err != nil {
		h.log.Error("encode broadcast", "err", err)
		return
	}

	author := msg.AuthorID()
	for _, e := range h.conns.Snapshot() {
		if e.Key == author {
			continue
		}
		select {
		case e.Value.send <- data:
		default:
			missed := e.Value.missed.Add(1)
			h.log.Warn("slow consumer missed message", "conn", e.Key, "missed", missed)
		}
	}
}

func (h *Hub) closeAll() {
	for _, e := range h.conns.Snapshot() {
		h.conns.Remove(e.Key)
		e.Value.closeSend()
	}
	h.log.Info("websocket hub stopped")
}
