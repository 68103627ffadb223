// Package hub implements the hub side of the system: the relay registry
// with its liveness probes, the room index used to route joins, the
// first-success room-creation scan, the hub's HTTP surface, and the
// operator console commands.
//
// The hub holds no room state of its own beyond the id-to-relay index, and
// that index is eventually consistent with the relays: it reflects rooms
// the hub routed, not the relays' authoritative state.
package hub
