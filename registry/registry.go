package registry

import (
	"errors"
	"sync"
	"time"
)

// ErrCapacityExceeded is returned when inserting a new key into a registry
// that is already at its capacity ceiling. Callers decide policy: reject the
// insert, or evict and retry.
var ErrCapacityExceeded = errors.New("registry: capacity exceeded")

// Entry is a single key/value pair returned by Snapshot.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Option configures a Registry at construction time.
type Option func(*settings)

type settings struct {
	capacity int
	ttl      time.Duration
}

// WithCapacity caps the number of live entries. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(s *settings) { s.capacity = n }
}

// WithTTL sets a per-entry lifetime. Expired entries are hidden from reads
// and removed by Reconcile. Zero means entries never expire.
func WithTTL(d time.Duration) Option {
	return func(s *settings) { s.ttl = d }
}

type item[V any] struct {
	value      V
	insertedAt time.Time
}

// Registry is a concurrency-safe map with an optional capacity ceiling,
// optional per-entry expiry, and insertion-order iteration.
//
// All mutation goes through the registry's own lock; values returned by Get
// and Snapshot are shared views, so callers must not rely on them for
// exclusive access to mutable state.
type Registry[K comparable, V any] struct {
	mu       sync.RWMutex
	items    map[K]item[V]
	order    []K
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// New creates a registry. With no options it is an unbounded,
// never-expiring concurrent map.
func New[K comparable, V any](opts ...Option) *Registry[K, V] {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	return &Registry[K, V]{
		items:    make(map[K]item[V]),
		capacity: s.capacity,
		ttl:      s.ttl,
		now:      time.Now,
	}
}

// Insert stores value under key. Replacing an existing key always succeeds,
// returns the previous value, and refreshes the entry's expiry while keeping
// its insertion-order position; last-writer-wins is the defined policy.
// Inserting a new key at capacity returns ErrCapacityExceeded. The capacity
// check and the insert are a single atomic step.
func (r *Registry[K, V]) Insert(key K, value V) (prev V, replaced bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.items[key]; ok {
		r.items[key] = item[V]{value: value, insertedAt: r.now()}
		return old.value, true, nil
	}
	if r.capacity > 0 && len(r.items) >= r.capacity {
		return prev, false, ErrCapacityExceeded
	}
	r.items[key] = item[V]{value: value, insertedAt: r.now()}
	r.order = append(r.order, key)
	return prev, false, nil
}

// Get returns the value stored under key. Expired entries read as absent
// but are not removed until Reconcile.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[key]
	if !ok || r.expired(it, r.now()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Remove deletes key and returns the value it held.
func (r *Registry[K, V]) Remove(key K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(r.items, key)
	r.dropFromOrder(key)
	return it.value, true
}

// Len reports the number of stored entries, expired ones included until the
// next Reconcile.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot returns a point-in-time copy of all live entries in insertion
// order. It is safe to mutate the registry while iterating the result;
// entries added or removed after the snapshot may or may not appear.
func (r *Registry[K, V]) Snapshot() []Entry[K, V] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	entries := make([]Entry[K, V], 0, len(r.items))
	for _, key := range r.order {
		it, ok := r.items[key]
		if !ok || r.expired(it, now) {
			continue
		}
		entries = append(entries, Entry[K, V]{Key: key, Value: it.value})
	}
	return entries
}

// Reconcile evicts every expired entry and returns how many were removed.
func (r *Registry[K, V]) Reconcile() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := 0
	kept := r.order[:0]
	for _, key := range r.order {
		it, ok := r.items[key]
		if ok && r.expired(it, now) {
			delete(r.items, key)
			evicted++
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
	return evicted
}

// EvictOldest removes the earliest-inserted entry and returns its key.
// Used by callers whose policy under capacity pressure is evict-oldest
// rather than reject-new.
func (r *Registry[K, V]) EvictOldest() (K, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) == 0 {
		var zero K
		return zero, false
	}
	key := r.order[0]
	r.order = r.order[1:]
	delete(r.items, key)
	return key, true
}

func (r *Registry[K, V]) expired(it item[V], now time.Time) bool {
	return r.ttl > 0 && now.Sub(it.insertedAt) > r.ttl
}

func (r *Registry[K, V]) dropFromOrder(key K) {
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
