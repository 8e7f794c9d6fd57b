package weight

import (
	"context"

	"github.com/kestrelbalance/p2c/balance"
)

// Key pairs an endpoint key with its weight, as produced by a
// weight-aware discovery source.
type Key[K comparable] struct {
	Key    K
	Weight Weight
}

// Discover adapts a discovery stream whose keys carry a Weight into one whose
// keys are the bare endpoint key and whose services are Weighted, confining
// weight-handling to this single layer so balance.Balancer itself never has
// to know weights exist.
type Discover[K comparable, Req, Resp any, S balance.Endpoint[Req, Resp]] struct {
	inner balance.Discoverer[Key[K], S]
}

// NewDiscover wraps inner, stripping weights into Weighted endpoints.
func NewDiscover[K comparable, Req, Resp any, S balance.Endpoint[Req, Resp]](inner balance.Discoverer[Key[K], S]) *Discover[K, Req, Resp, S] {
	return &Discover[K, Req, Resp, S]{inner: inner}
}

// Poll implements balance.Discoverer.
func (d *Discover[K, Req, Resp, S]) Poll(ctx context.Context) (balance.Delta[K, Weighted[Req, Resp, S]], balance.Status, error) {
	delta, status, err := d.inner.Poll(ctx)
	if err != nil || status == balance.NotReady {
		return balance.Delta[K, Weighted[Req, Resp, S]]{}, status, err
	}

	out := balance.Delta[K, Weighted[Req, Resp, S]]{
		Kind: delta.Kind,
		Key:  delta.Key.Key,
	}
	if delta.Kind == balance.Insert {
		out.Endpoint = New[Req, Resp](delta.Endpoint, delta.Key.Weight)
	}
	return out, status, nil
}
