package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/varkas/roomrelay/protocol"
	"github.com/varkas/roomrelay/registry"
)

const (
	// MaxRelays caps how many relay addresses the hub tracks.
	MaxRelays = 100

	// MaxRoomIndex caps the room-id-to-relay index. Under capacity pressure
	// the oldest routing entry is evicted; the hub does not track room
	// liveness, so age is the only signal available.
	MaxRoomIndex = 10_000
)

var (
	// ErrAddressParse marks a malformed relay address.
	ErrAddressParse = errors.New("hub: malformed relay address")

	// ErrNoCapacity is returned by CreateRoom when no registered relay
	// accepted the room, or none are registered.
	ErrNoCapacity = errors.New("hub: no rooms available")
)

// RelayRegistry tracks known relays and which relay owns which room.
// Relays are probed before insertion and scanned in registration order
// when a room is created.
type RelayRegistry struct {
	relays *registry.Registry[string, *Client]
	rooms  *registry.Registry[string, string]
	log    *slog.Logger

	// newClient is swapped in tests to observe outbound traffic.
	newClient func(addr string) *Client
}

// NewRelayRegistry builds an empty registry.
func NewRelayRegistry(log *slog.Logger) *RelayRegistry {
	return &RelayRegistry{
		relays:    registry.New[string, *Client](registry.WithCapacity(MaxRelays)),
		rooms:     registry.New[string, string](registry.WithCapacity(MaxRoomIndex)),
		log:       log,
		newClient: NewClient,
	}
}

// Register validates addr, probes the relay's health endpoint, and stores a
// reusable client for it. A duplicate address replaces the existing entry
// rather than adding a second one. The relay is not stored if the probe
// fails.
func (r *RelayRegistry) Register(ctx context.Context, addr string) error {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAddressParse, addr)
	}

	client := r.newClient(ap.String())
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}

	_, replaced, err := r.relays.Insert(ap.String(), client)
	if err != nil {
		return err
	}
	r.log.Info("relay registered", "addr", ap.String(), "replaced", replaced, "relays", r.relays.Len())
	return nil
}

// Remove drops a relay from the registry. Rooms already routed to it keep
// their index entries; joins to those rooms will fail at connect time.
func (r *RelayRegistry) Remove(addr string) bool {
	_, ok := r.relays.Remove(addr)
	if ok {
		r.log.Info("relay removed", "addr", addr)
	}
	return ok
}

// List returns the registered relay addresses in registration order.
func (r *RelayRegistry) List() []string {
	snap := r.relays.Snapshot()
	addrs := make([]string, 0, len(snap))
	for _, e := range snap {
		addrs = append(addrs, e.Key)
	}
	return addrs
}

// RouteRoom returns the address of the relay owning roomID.
func (r *RelayRegistry) RouteRoom(roomID string) (string, bool) {
	return r.rooms.Get(roomID)
}

// RoomCount returns the number of rooms the hub has routed.
func (r *RelayRegistry) RoomCount() int {
	return r.rooms.Len()
}

// CreateRoom scans relays in registration order and asks each to create a
// room; the first success wins. Relays that error are logged and skipped,
// never retried here. On success the room is recorded in the routing index
// before the response is returned, so the id is immediately routable.
func (r *RelayRegistry) CreateRoom(ctx context.Context) (protocol.RoomInfo, error) {
	for _, e := range r.relays.Snapshot() {
		info, err := e.Value.CreateRoom(ctx)
		if err != nil {
			if errors.Is(err, ErrBadRelayResponse) {
				return protocol.RoomInfo{}, err
			}
			r.log.Warn("room creation failed, skipping relay", "addr", e.Key, "err", err)
			continue
		}

		r.recordRoom(info.ID, e.Key)
		r.log.Info("room created", "room", info.ID, "relay", e.Key)
		return info, nil
	}
	return protocol.RoomInfo{}, ErrNoCapacity
}

func (r *RelayRegistry) recordRoom(roomID, addr string) {
	_, _, err := r.rooms.Insert(roomID, addr)
	if errors.Is(err, registry.ErrCapacityExceeded) {
		if old, ok := r.rooms.EvictOldest(); ok {
			r.log.Debug("room index full, evicted oldest entry", "room", old)
		}
		_, _, err = r.rooms.Insert(roomID, addr)
	}
	if err != nil {
		r.log.Error("failed to index room", "room", roomID, "err", err)
	}
}
