package relay

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/varkas/roomrelay/protocol"
	"github.com/varkas/roomrelay/registry"
)

// MaxRooms caps how many rooms a single relay will host.
const MaxRooms = 10_000

// ErrAtCapacity is returned by Create when the relay already hosts MaxRooms
// rooms.
var ErrAtCapacity = errors.New("relay: at room capacity")

// Room is a broadcast domain hosted by this relay. Membership is tracked by
// connection id.
type Room struct {
	ID      string
	Privacy protocol.Privacy

	mu      sync.Mutex
	members map[string]struct{}
}

func newRoom(id string, privacy protocol.Privacy) *Room {
	return &Room{
		ID:      id,
		Privacy: privacy,
		members: make(map[string]struct{}),
	}
}

// AddMember records a connection as a member of the room.
func (r *Room) AddMember(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[connID] = struct{}{}
}

// RemoveMember drops a connection from the room and reports how many
// members remain.
func (r *Room) RemoveMember(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, connID)
	return len(r.members)
}

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// RoomRegistry is the relay's authoritative set of live rooms.
type RoomRegistry struct {
	rooms *registry.Registry[string, *Room]
	log   *slog.Logger
}

// NewRoomRegistry creates an empty registry bounded at MaxRooms.
func NewRoomRegistry(log *slog.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms: registry.New[string, *Room](registry.WithCapacity(MaxRooms)),
		log:   log,
	}
}

// Create allocates a room with a fresh id. It returns ErrAtCapacity when the
// relay already hosts MaxRooms rooms.
func (rr *RoomRegistry) Create(privacy protocol.Privacy) (*Room, error) {
	room := newRoom(uuid.NewString(), privacy)
	if _, _, err := rr.rooms.Insert(room.ID, room); err != nil {
		if errors.Is(err, registry.ErrCapacityExceeded) {
			return nil, ErrAtCapacity
		}
		return nil, err
	}
	rr.log.Info("room created", "room", room.ID, "rooms", rr.rooms.Len())
	return room, nil
}

// Get returns the room with the given id.
func (rr *RoomRegistry) Get(roomID string) (*Room, bool) {
	return rr.rooms.Get(roomID)
}

// Destroy removes a room regardless of membership.
func (rr *RoomRegistry) Destroy(roomID string) {
	if _, ok := rr.rooms.Remove(roomID); ok {
		rr.log.Info("room destroyed", "room", roomID, "rooms", rr.rooms.Len())
	}
}

// Leave drops a connection from a room and destroys the room once its last
// member is gone. Unknown rooms are a no-op.
func (rr *RoomRegistry) Leave(roomID, connID string) {
	room, ok := rr.rooms.Get(roomID)
	if !ok {
		return
	}
	if room.RemoveMember(connID) == 0 {
		rr.Destroy(roomID)
	}
}

// Len returns the number of live rooms.
func (rr *RoomRegistry) Len() int {
	return rr.rooms.Len()
}
