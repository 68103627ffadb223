package hub

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayCommandAdd(t *testing.T) {
	reg := NewRelayRegistry(testLogger())
	cmd := RelayCommand{Registry: reg}
	relay := newFakeRelay(t, true, true)

	var out bytes.Buffer
	require.NoError(t, cmd.Execute(&out, []string{"add", relay.addr()}))
	assert.Equal(t, "Relay added successfully.\n", out.String())
	assert.Equal(t, []string{relay.addr()}, reg.List())
}

func TestRelayCommandAddBadAddress(t *testing.T) {
	cmd := RelayCommand{Registry: NewRelayRegistry(testLogger())}

	var out bytes.Buffer
	require.NoError(t, cmd.Execute(&out, []string{"add", "garbage"}))
	assert.Equal(t, "Failed to parse address: garbage\n", out.String())
}

func TestRelayCommandAddMissingAddress(t *testing.T) {
	cmd := RelayCommand{Registry: NewRelayRegistry(testLogger())}

	var out bytes.Buffer
	require.NoError(t, cmd.Execute(&out, []string{"add"}))
	assert.Equal(t, "Usage: relay add <ipaddr>\n", out.String())
}

func TestRelayCommandList(t *testing.T) {
	reg := NewRelayRegistry(testLogger())
	cmd := RelayCommand{Registry: reg}

	var out bytes.Buffer
	require.NoError(t, cmd.Execute(&out, []string{"list"}))
	assert.Equal(t, "There are no relays connected.\n", out.String())

	relay := newFakeRelay(t, true, true)
	require.NoError(t, reg.Register(context.Background(), relay.addr()))

	out.Reset()
	require.NoError(t, cmd.Execute(&out, []string{"list"}))
	assert.Equal(t, "1) "+relay.addr()+"\n", out.String())
}

func TestRelayCommandRemove(t *testing.T) {
	reg := NewRelayRegistry(testLogger())
	cmd := RelayCommand{Registry: reg}
	relay := newFakeRelay(t, true, true)
	require.NoError(t, reg.Register(context.Background(), relay.addr()))

	var out bytes.Buffer
	require.NoError(t, cmd.Execute(&out, []string{"remove", relay.addr()}))
	assert.Equal(t, "Relay removed.\n", out.String())

	out.Reset()
	require.NoError(t, cmd.Execute(&out, []string{"remove", relay.addr()}))
	assert.Equal(t, "No relay registered at "+relay.addr()+".\n", out.String())
}

func TestRelayCommandUsage(t *testing.T) {
	cmd := RelayCommand{Registry: NewRelayRegistry(testLogger())}

	var out bytes.Buffer
	require.NoError(t, cmd.Execute(&out, nil))
	assert.Equal(t, "Usage: relay <op> ...args\n", out.String())
}
