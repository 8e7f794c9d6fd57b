// Package weight implements per-endpoint weighting as a layer above
// balance.Balancer, keeping the selection algorithm itself load-generic:
// weighting is effected purely by dividing a wrapped endpoint's reported load
// by its weight.
package weight

import (
	"context"
	"math"

	"github.com/kestrelbalance/p2c/balance"
	"github.com/kestrelbalance/p2c/future"
	"github.com/kestrelbalance/p2c/loadmetric"
)

// Weight is a non-negative rational, represented as a fixed-point integer
// whose unit value is 10_000 (so Weight(15_000) means 1.5x).
type Weight uint32

const (
	// Zero excludes an endpoint from ever winning a P2C comparison (its
	// reported load is always +Inf) while still allowing it to be polled for
	// readiness, which is useful for draining.
	Zero Weight = 0
	// Min is the smallest positive weight representable.
	Min Weight = 1
	// Unit is a weight of exactly 1.0.
	Unit Weight = 10_000
	// Max is the largest representable weight.
	Max Weight = math.MaxUint32
)

// FromFloat64 constructs a Weight from a real value, per the construction
// rules: NaN or values <= 0 map to Zero; +Inf maps to Max; otherwise the
// value is scaled by Unit and rounded to the nearest integer, with a floor of
// Min for positive inputs that would otherwise round to zero.
func FromFloat64(x float64) Weight {
	switch {
	case math.IsNaN(x), x <= 0:
		return Zero
	case math.IsInf(x, 1):
		return Max
	}

	scaled := math.Round(x * float64(Unit))
	if scaled <= 0 {
		return Min
	}
	if scaled >= float64(Max) {
		return Max
	}
	return Weight(scaled)
}

// Float64 returns the weight as a real number (1.0 == Unit).
func (w Weight) Float64() float64 {
	return float64(w) / float64(Unit)
}

// Div divides m by w, per the sentinel rule: dividing by a Zero weight always
// yields +Inf ("never select"), which native float division already
// provides once w's zero case is handled explicitly (float64(0)/float64(0)
// would otherwise yield NaN, not +Inf, when m is itself zero).
func (w Weight) Div(m loadmetric.Metric) loadmetric.Metric {
	if w == Zero {
		return math.Inf(1)
	}
	return m / w.Float64()
}

// Weighted wraps an endpoint, reporting its load divided by a fixed weight.
// PollReady and Dispatch are forwarded unchanged.
type Weighted[Req, Resp any, S balance.Endpoint[Req, Resp]] struct {
	Inner  S
	Weight Weight
}

// New wraps inner with the given weight.
func New[Req, Resp any, S balance.Endpoint[Req, Resp]](inner S, w Weight) Weighted[Req, Resp, S] {
	return Weighted[Req, Resp, S]{Inner: inner, Weight: w}
}

// PollReady forwards to the wrapped endpoint.
func (w Weighted[Req, Resp, S]) PollReady(ctx context.Context) (balance.Status, error) {
	return w.Inner.PollReady(ctx)
}

// Dispatch forwards to the wrapped endpoint.
func (w Weighted[Req, Resp, S]) Dispatch(ctx context.Context, req Req) future.Future[Resp] {
	return w.Inner.Dispatch(ctx, req)
}

// Load reports the wrapped endpoint's load divided by this weight.
func (w Weighted[Req, Resp, S]) Load() loadmetric.Metric {
	return w.Weight.Div(w.Inner.Load())
}
