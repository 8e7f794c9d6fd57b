package balance

import (
	"context"
	"errors"

	"github.com/kestrelbalance/p2c/future"
)

// fakeEndpoint is a minimal Endpoint[string, string] for tests: it reports a
// fixed load, a scripted readiness status, and dispatch echoes the request.
type fakeEndpoint struct {
	load    float64
	status  Status
	failErr error
}

func (f *fakeEndpoint) PollReady(ctx context.Context) (Status, error) {
	if f.failErr != nil {
		return NotReady, f.failErr
	}
	return f.status, nil
}

func (f *fakeEndpoint) Dispatch(ctx context.Context, req string) future.Future[string] {
	return future.Ready("echo:" + req)
}

func (f *fakeEndpoint) Load() float64 { return f.load }

func ready(load float64) *fakeEndpoint  { return &fakeEndpoint{load: load, status: Ready} }
func notReady() *fakeEndpoint           { return &fakeEndpoint{status: NotReady} }
func failing(err error) *fakeEndpoint   { return &fakeEndpoint{failErr: err} }

var errProbe = errors.New("probe failed")

// fixedRand returns indices from a fixed, cyclically-repeated sequence. Used
// to force specific P2C samples in scenario tests (S2-S4).
type fixedRand struct {
	seq []int
	i   int
}

func (f *fixedRand) Intn(n int) int {
	v := f.seq[f.i%len(f.seq)] % n
	f.i++
	return v
}

// manualDiscoverer is a fake discovery stream driven entirely by test code:
// Push queues a delta to be returned by the next Poll call; Poll returns
// NotReady once the queue is drained, or the configured error.
type manualDiscoverer[K comparable, S any] struct {
	queue []Delta[K, S]
	err   error
}

func (m *manualDiscoverer[K, S]) Push(d Delta[K, S]) { m.queue = append(m.queue, d) }

func (m *manualDiscoverer[K, S]) Poll(ctx context.Context) (Delta[K, S], Status, error) {
	if m.err != nil {
		return Delta[K, S]{}, NotReady, m.err
	}
	if len(m.queue) == 0 {
		return Delta[K, S]{}, NotReady, nil
	}
	d := m.queue[0]
	m.queue = m.queue[1:]
	return d, Ready, nil
}
