// Package relay implements the worker node: it owns rooms, accepts the
// WebSocket connections the hub routes to it, and answers the hub's
// healthchecks and room-creation requests.
//
// A relay is intentionally stateless across restarts. Rooms live in memory
// only; the hub learns about them through the room-creation response and
// forgets them when the relay disappears.
package relay
