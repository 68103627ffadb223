// Package protocol defines the wire types shared by the hub, the relays,
// and WebSocket clients.
//
// Application messages form a small tagged union selected by an opcode:
// Hello (0) assigns a connection its id during the handshake, ChatMessage
// (1) carries user content for broadcast. The canonical encoding is the
// JSON envelope {"opcode":N,"data":{...}}; an opcode-prefixed binary frame
// (first byte opcode, remaining bytes the UTF-8 data payload) is accepted
// as an alternative inbound encoding.
package protocol
