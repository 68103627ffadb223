// Package shutdown provides the one-shot cancellation signal observed by
// every accept loop, read loop, and deliver loop in the process.
package shutdown

import (
	"context"
	"sync"
)

// Coordinator broadcasts a single shutdown signal. Fire is idempotent;
// observers that exited before the signal simply never see it.
type Coordinator struct {
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator returns a coordinator that has not fired.
func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Fire broadcasts the shutdown signal. Safe to call from multiple
// goroutines; only the first call has any effect.
func (c *Coordinator) Fire() {
	c.once.Do(c.cancel)
}

// Done returns a channel closed once the signal has fired.
func (c *Coordinator) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Fired reports whether the signal has fired.
func (c *Coordinator) Fired() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Context returns a context cancelled when the signal fires, for handing
// to HTTP clients and other context-aware calls.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}
