// Package registry provides a bounded, concurrency-safe key/value store.
//
// A Registry is the shared building block for every piece of mutable state
// in this system: the hub's relay table and room index, the relay's room
// table, and the per-relay connection table. It supports an optional
// capacity ceiling, optional per-entry expiry, and insertion-order
// snapshots for callers that need deterministic iteration.
//
// Expiry is explicit: expired entries are hidden from Get and Snapshot but
// only removed by Reconcile. Callers that are about to make a decision
// based on Len should call Reconcile first.
package registry
