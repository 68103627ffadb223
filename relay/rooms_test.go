package relay

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varkas/roomrelay/protocol"
	"github.com/varkas/roomrelay/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// boundedRooms builds a registry with a small ceiling so capacity behavior
// is testable without creating MaxRooms rooms.
func boundedRooms(capacity int) *RoomRegistry {
	return &RoomRegistry{
		rooms: registry.New[string, *Room](registry.WithCapacity(capacity)),
		log:   testLogger(),
	}
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	rr := NewRoomRegistry(testLogger())

	a, err := rr.Create(protocol.PrivacyPublic)
	require.NoError(t, err)
	b, err := rr.Create(protocol.PrivacyPublic)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, protocol.PrivacyPublic, a.Privacy)
	assert.Equal(t, 2, rr.Len())

	got, ok := rr.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestCreateAtCapacity(t *testing.T) {
	rr := boundedRooms(2)

	_, err := rr.Create(protocol.PrivacyPublic)
	require.NoError(t, err)
	_, err = rr.Create(protocol.PrivacyPublic)
	require.NoError(t, err)

	_, err = rr.Create(protocol.PrivacyPublic)
	assert.ErrorIs(t, err, ErrAtCapacity)
	assert.Equal(t, 2, rr.Len())
}

func TestCreateConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity = 50
	const attempts = capacity + 20
	rr := boundedRooms(capacity)

	var created, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := rr.Create(protocol.PrivacyPublic); err != nil {
				rejected.Add(1)
			} else {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(capacity), created.Load())
	assert.Equal(t, int64(attempts-capacity), rejected.Load())
	assert.Equal(t, capacity, rr.Len())
}

func TestLeaveDestroysEmptyRoom(t *testing.T) {
	rr := NewRoomRegistry(testLogger())
	room, err := rr.Create(protocol.PrivacyPublic)
	require.NoError(t, err)

	room.AddMember("a")
	room.AddMember("b")
	assert.Equal(t, 2, room.MemberCount())

	rr.Leave(room.ID, "a")
	_, ok := rr.Get(room.ID)
	assert.True(t, ok, "room with remaining members must survive")

	rr.Leave(room.ID, "b")
	_, ok = rr.Get(room.ID)
	assert.False(t, ok, "empty room must be destroyed")
	assert.Equal(t, 0, rr.Len())
}

func TestLeaveUnknownRoomIsNoop(t *testing.T) {
	rr := NewRoomRegistry(testLogger())
	rr.Leave("nope", "a")
	assert.Equal(t, 0, rr.Len())
}

func TestDestroyIgnoresMembership(t *testing.T) {
	rr := NewRoomRegistry(testLogger())
	room, err := rr.Create(protocol.PrivacyPublic)
	require.NoError(t, err)
	room.AddMember("a")

	rr.Destroy(room.ID)
	_, ok := rr.Get(room.ID)
	assert.False(t, ok)
}
