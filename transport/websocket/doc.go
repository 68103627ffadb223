// Package websocket provides the relay's live-connection layer: the
// broadcast hub, per-connection read/write pumps, and the handshake that
// assigns each connection its id.
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns the
// connection registry and serializes registration, unregistration, and
// fan-out in a single goroutine, so a client's send channel is only ever
// closed and written from one place. Each connection's outbound socket
// half is owned exclusively by its write pump; nothing else touches the
// wire, which keeps frames from interleaving without per-write locking.
//
// Message Protocol:
//
// Frames carry the protocol package's tagged union. Text frames hold the
// canonical JSON envelope {"opcode":N,"data":{...}}; binary frames hold
// the opcode-prefixed alternative. The hub re-stamps every chat message
// with the sending connection's id before fan-out.
//
// Connection Lifecycle:
//
//  1. Client upgrades; the hub assigns a fresh connection id
//  2. Connection registered with hub, Hello{id} queued to the client
//  3. Inbound chat messages are published to every other connection
//  4. Close frame, read error, or the shutdown signal triggers cleanup,
//     exactly once
//
// Fan-out is best effort: the broadcast channel is bounded, and a
// subscriber whose send buffer is full misses the message (counted per
// connection) rather than blocking the publisher.
package websocket
