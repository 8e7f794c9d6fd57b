// Package discover provides a minimal, manually-driven discovery stream
// implementation for wiring up demos and tests without a real service
// registry.
package discover

import (
	"context"
	"sync"

	"github.com/kestrelbalance/p2c/balance"
)

// Static is an in-memory, thread-safe discovery stream: Insert/Remove queue
// deltas from any goroutine (e.g. an HTTP registration handler), and Poll
// drains them from the single task driving the balancer, mirroring the
// teacher's InMemoryRegistry's locking boundary between concurrent
// registration and single-reader consumption.
type Static[K comparable, S any] struct {
	mu    sync.Mutex
	queue []balance.Delta[K, S]
	err   error
}

// NewStatic returns an empty Static discovery stream.
func NewStatic[K comparable, S any]() *Static[K, S] {
	return &Static[K, S]{}
}

// Insert queues an Insert/replace delta for key k.
func (s *Static[K, S]) Insert(k K, svc S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, balance.Delta[K, S]{Kind: balance.Insert, Key: k, Endpoint: svc})
}

// Remove queues a Remove delta for key k.
func (s *Static[K, S]) Remove(k K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, balance.Delta[K, S]{Kind: balance.Remove, Key: k})
}

// Fail permanently fails the stream: every subsequent Poll returns err.
func (s *Static[K, S]) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Poll implements balance.Discoverer, returning the oldest queued delta, or
// NotReady if the queue is empty.
func (s *Static[K, S]) Poll(ctx context.Context) (balance.Delta[K, S], balance.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero balance.Delta[K, S]
	if s.err != nil {
		return zero, balance.NotReady, s.err
	}
	if len(s.queue) == 0 {
		return zero, balance.NotReady, nil
	}
	d := s.queue[0]
	s.queue = s.queue[1:]
	return d, balance.Ready, nil
}
