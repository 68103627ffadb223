package hub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varkas/roomrelay/protocol"
)

func newTestServer(t *testing.T) (*Server, *RelayRegistry) {
	t.Helper()
	reg := NewRelayRegistry(testLogger())
	return NewServer(reg, testLogger()), reg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestCreateRoomEndpoint(t *testing.T) {
	s, reg := newTestServer(t)
	relay := newFakeRelay(t, true, true)
	require.NoError(t, reg.Register(context.Background(), relay.addr()))

	rec := do(t, s, http.MethodPost, "/room/create", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info protocol.RoomInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, protocol.PrivacyPublic, info.Privacy)
	assert.Equal(t, relay.addr(), info.RelayAddr)
}

func TestCreateRoomEndpointNoRelays(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/room/create", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no rooms available", strings.TrimSpace(rec.Body.String()))
}

func TestCreateRoomEndpointBadRelayBody(t *testing.T) {
	s, reg := newTestServer(t)
	relay := newFakeRelay(t, true, true)
	relay.badBody = true
	require.NoError(t, reg.Register(context.Background(), relay.addr()))

	rec := do(t, s, http.MethodPost, "/room/create", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRelayEndpoint(t *testing.T) {
	s, reg := newTestServer(t)
	relay := newFakeRelay(t, true, true)

	rec := do(t, s, http.MethodPost, "/relay/register", `{"addr":"`+relay.addr()+`"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{relay.addr()}, reg.List())

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/relay/register", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed address", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/relay/register", `{"addr":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unreachable relay", func(t *testing.T) {
		down := newFakeRelay(t, false, true)
		rec := do(t, s, http.MethodPost, "/relay/register", `{"addr":"`+down.addr()+`"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestListRelaysEndpoint(t *testing.T) {
	s, reg := newTestServer(t)
	relay := newFakeRelay(t, true, true)
	require.NoError(t, reg.Register(context.Background(), relay.addr()))

	rec := do(t, s, http.MethodGet, "/relay/list", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var addrs []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addrs))
	assert.Equal(t, []string{relay.addr()}, addrs)
}

func TestRouteRoomEndpoint(t *testing.T) {
	s, reg := newTestServer(t)
	relay := newFakeRelay(t, true, true)
	require.NoError(t, reg.Register(context.Background(), relay.addr()))

	info, err := reg.CreateRoom(context.Background())
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/room/"+info.ID+"/relay", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, relay.addr(), body["relayAddr"])

	rec = do(t, s, http.MethodGet, "/room/does-not-exist/relay", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPingAndGreet(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/greet/world", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello, world!", rec.Body.String())
}
