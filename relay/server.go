package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/varkas/roomrelay/protocol"
	"github.com/varkas/roomrelay/transport/websocket"
)

// Server is the relay's HTTP surface: healthcheck and room creation for the
// hub, and the WebSocket endpoint for clients.
type Server struct {
	rooms     *RoomRegistry
	hub       *websocket.Hub
	advertise string
	router    *mux.Router
	log       *slog.Logger
}

// NewServer wires the relay routes onto a fresh router. advertise is the
// host:port this relay is reachable at; it is echoed back in room-creation
// responses so clients know where to connect.
func NewServer(rooms *RoomRegistry, hub *websocket.Hub, advertise string, log *slog.Logger) *Server {
	s := &Server{
		rooms:     rooms,
		hub:       hub,
		advertise: advertise,
		router:    mux.NewRouter(),
		log:       log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthcheck", s.handleHealthcheck).Methods("GET")
	s.router.HandleFunc("/room/create", s.handleCreateRoom).Methods("POST")
	s.router.HandleFunc("/ws", s.handleWS).Methods("GET")
	s.router.HandleFunc("/ping", s.handlePing).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, _ *http.Request) {
	room, err := s.rooms.Create(protocol.PrivacyPublic)
	switch {
	case errors.Is(err, ErrAtCapacity):
		http.Error(w, "relay at capacity", http.StatusServiceUnavailable)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(protocol.RoomInfo{
			ID:        room.ID,
			Privacy:   room.Privacy,
			RelayAddr: s.advertise,
		})
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")

	var room *Room
	if roomID != "" {
		var ok bool
		if room, ok = s.rooms.Get(roomID); !ok {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}
	}

	var onClose func(connID string)
	if room != nil {
		onClose = func(connID string) { s.rooms.Leave(roomID, connID) }
	}

	connID, err := s.hub.ServeWS(w, r, onClose)
	if err != nil {
		// ServeWS already wrote the HTTP error before upgrading.
		return
	}

	if room != nil {
		room.AddMember(connID)
		// The connection may have died before we recorded membership; make
		// sure the close hook's work is not lost.
		if _, ok := s.hub.Lookup(connID); !ok {
			s.rooms.Leave(roomID, connID)
		}
	}
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "pong")
}
