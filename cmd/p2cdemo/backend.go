package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kestrelbalance/p2c/balance"
	"github.com/kestrelbalance/p2c/discover"
	"github.com/kestrelbalance/p2c/future"
	"github.com/kestrelbalance/p2c/loadmetric"
)

// backendEndpoint forwards a proxied *http.Request to a single upstream
// address, reporting its pending-request count as its load. It never fails
// readiness on its own: per spec.md's Non-goals, health-checking beyond the
// bare readiness contract is out of core scope, so any transport failure
// surfaces only through the dispatched future.
type backendEndpoint struct {
	addr    string
	client  *http.Client
	pending *loadmetric.PendingRequests
}

func newBackendEndpoint(addr string, client *http.Client) *backendEndpoint {
	return &backendEndpoint{addr: addr, client: client, pending: &loadmetric.PendingRequests{}}
}

func (b *backendEndpoint) PollReady(ctx context.Context) (balance.Status, error) {
	return balance.Ready, nil
}

func (b *backendEndpoint) Load() loadmetric.Metric {
	return b.pending.Load()
}

func (b *backendEndpoint) Dispatch(ctx context.Context, req *http.Request) future.Future[*http.Response] {
	p, f := future.New[*http.Response]()
	b.pending.Inc()

	outReq, err := http.NewRequestWithContext(ctx, req.Method, b.addr+req.URL.Path, req.Body)
	if err != nil {
		b.pending.Dec()
		p.Reject(fmt.Errorf("backend %s: build request: %w", b.addr, err))
		return f
	}
	outReq.Header = req.Header

	go func() {
		defer b.pending.Dec()
		resp, err := b.client.Do(outReq)
		if err != nil {
			p.Reject(fmt.Errorf("backend %s: %w", b.addr, err))
			return
		}
		p.Resolve(resp)
	}()

	return f
}

// backendFactory hands out one backendEndpoint per call to Make, walking a
// fixed address list in order; Make returns an error once every address has
// been used. PollReady reports NotReady once the list is exhausted, so
// pooldiscover.Discover stops trying to grow past it.
type backendFactory struct {
	addrs   []string
	client  *http.Client
	nextIdx int
}

func newBackendFactory(addrs []string) *backendFactory {
	return &backendFactory{addrs: addrs, client: &http.Client{Timeout: 10 * time.Second}}
}

func (f *backendFactory) PollReady(ctx context.Context) (balance.Status, error) {
	if f.nextIdx >= len(f.addrs) {
		return balance.NotReady, nil
	}
	return balance.Ready, nil
}

func (f *backendFactory) Make(ctx context.Context, target struct{}) (future.Future[*backendEndpoint], error) {
	if f.nextIdx >= len(f.addrs) {
		return nil, fmt.Errorf("backendFactory: address list exhausted")
	}
	addr := f.addrs[f.nextIdx]
	f.nextIdx++
	return future.Ready(newBackendEndpoint(addr, f.client)), nil
}

// newStaticBalancer builds a balance.Balancer directly over discover.Static,
// seeded up front with every configured address. Unlike the elastic
// pool.Pool path above, this never grows or shrinks: it's the natural fit
// for a backend set that's already fully known from config, with no
// factory-driven discovery involved.
func newStaticBalancer(addrs []string) *balance.Balancer[string, *http.Request, *http.Response, *backendEndpoint] {
	client := &http.Client{Timeout: 10 * time.Second}
	src := discover.NewStatic[string, *backendEndpoint]()
	for i, addr := range addrs {
		src.Insert(fmt.Sprintf("backend-%d", i), newBackendEndpoint(addr, client))
	}
	return balance.New[string, *http.Request, *http.Response, *backendEndpoint](src)
}
