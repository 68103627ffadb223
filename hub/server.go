package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/varkas/roomrelay/registry"
)

// Server is the hub's HTTP surface.
type Server struct {
	relays *RelayRegistry
	router *mux.Router
	log    *slog.Logger
}

// NewServer wires the hub routes onto a fresh router.
func NewServer(relays *RelayRegistry, log *slog.Logger) *Server {
	s := &Server{
		relays: relays,
		router: mux.NewRouter(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/room/create", s.handleCreateRoom).Methods("POST")
	s.router.HandleFunc("/room/{id}/relay", s.handleRouteRoom).Methods("GET")
	s.router.HandleFunc("/relay/register", s.handleRegisterRelay).Methods("POST")
	s.router.HandleFunc("/relay/list", s.handleListRelays).Methods("GET")
	s.router.HandleFunc("/ping", s.handlePing).Methods("GET")
	s.router.HandleFunc("/greet/{name}", s.handleGreet).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	info, err := s.relays.CreateRoom(r.Context())
	switch {
	case errors.Is(err, ErrNoCapacity):
		http.Error(w, "no rooms available", http.StatusInternalServerError)
	case errors.Is(err, ErrBadRelayResponse):
		http.Error(w, "relay returned a malformed response", http.StatusBadRequest)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		respondJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleRouteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	addr, ok := s.relays.RouteRoom(roomID)
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": roomID, "relayAddr": addr})
}

func (s *Server) handleRegisterRelay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Addr string `json:"addr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Addr == "" {
		http.Error(w, "body must be {\"addr\":\"host:port\"}", http.StatusBadRequest)
		return
	}

	err := s.relays.Register(r.Context(), req.Addr)
	switch {
	case errors.Is(err, ErrAddressParse):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnreachable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, registry.ErrCapacityExceeded):
		http.Error(w, "relay registry is full", http.StatusInsufficientStorage)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		respondJSON(w, http.StatusCreated, map[string]string{"addr": req.Addr})
	}
}

func (s *Server) handleListRelays(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.relays.List())
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "pong")
}

func (s *Server) handleGreet(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.log.Info("greeting", "name", name)
	fmt.Fprintf(w, "Hello, %s!", name)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
