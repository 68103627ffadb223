package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varkas/roomrelay/protocol"
	"github.com/varkas/roomrelay/shutdown"
	"github.com/varkas/roomrelay/transport/websocket"
)

type relayFixture struct {
	rooms *RoomRegistry
	hub   *websocket.Hub
	srv   *httptest.Server
}

func newRelayFixture(t *testing.T, rooms *RoomRegistry) *relayFixture {
	t.Helper()

	coord := shutdown.NewCoordinator()
	hub := websocket.NewHub(coord, testLogger())
	go hub.Run()

	server := NewServer(rooms, hub, "relay.test:7000", testLogger())
	srv := httptest.NewServer(server)
	t.Cleanup(func() {
		coord.Fire()
		srv.Close()
	})

	return &relayFixture{rooms: rooms, hub: hub, srv: srv}
}

func (f *relayFixture) wsURL(roomID string) string {
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	if roomID != "" {
		u += "?room=" + roomID
	}
	return u
}

func TestHealthcheck(t *testing.T) {
	f := newRelayFixture(t, NewRoomRegistry(testLogger()))

	resp, err := http.Get(f.srv.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRoomEndpoint(t *testing.T) {
	f := newRelayFixture(t, NewRoomRegistry(testLogger()))

	resp, err := http.Post(f.srv.URL+"/room/create", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var info protocol.RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, protocol.PrivacyPublic, info.Privacy)
	assert.Equal(t, "relay.test:7000", info.RelayAddr)

	_, ok := f.rooms.Get(info.ID)
	assert.True(t, ok, "created room must be registered")
}

func TestCreateRoomAtCapacity(t *testing.T) {
	f := newRelayFixture(t, boundedRooms(1))

	resp, err := http.Post(f.srv.URL+"/room/create", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(f.srv.URL+"/room/create", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWSUnknownRoomRejected(t *testing.T) {
	f := newRelayFixture(t, NewRoomRegistry(testLogger()))

	_, resp, err := gorilla.DefaultDialer.Dial(f.wsURL("does-not-exist"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSJoinTracksMembership(t *testing.T) {
	f := newRelayFixture(t, NewRoomRegistry(testLogger()))
	room, err := f.rooms.Create(protocol.PrivacyPublic)
	require.NoError(t, err)

	conn, _, err := gorilla.DefaultDialer.Dial(f.wsURL(room.ID), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DecodeJSON(data)
	require.NoError(t, err)
	require.Equal(t, protocol.OpcodeHello, msg.Opcode)

	require.Eventually(t, func() bool {
		return room.MemberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		_, ok := f.rooms.Get(room.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "room must be destroyed after last member leaves")
}

func TestWSWithoutRoomStillConnects(t *testing.T) {
	f := newRelayFixture(t, NewRoomRegistry(testLogger()))

	conn, _, err := gorilla.DefaultDialer.Dial(f.wsURL(""), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DecodeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.OpcodeHello, msg.Opcode)
}
