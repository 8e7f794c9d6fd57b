// Package pool wraps a balance.Balancer whose discovery stream grows and
// shrinks on demand (pooldiscover.Discover), driving the growth/shrink
// decision from an EWMA estimate of recent saturation.
package pool

import (
	"context"

	"github.com/kestrelbalance/p2c/balance"
	"github.com/kestrelbalance/p2c/future"
	"github.com/kestrelbalance/p2c/pooldiscover"
)

// Options tunes the EWMA control loop. Zero-valued Options is invalid; use
// DefaultOptions or Builder.
type Options struct {
	// Initial is the EWMA's starting value and its reset value after a
	// removal (prevents an immediate second removal from the same dip).
	Initial float64
	// UnderutilizedBelow is the low-water threshold: once ewma drops below
	// this, the pool may shrink.
	UnderutilizedBelow float64
	// LoadedAbove is the high-water threshold: once ewma rises above this,
	// the pool grows.
	LoadedAbove float64
	// Urgency (α) is the weight given to the newest sample in the EWMA.
	Urgency float64
}

// DefaultOptions matches spec.md's stated defaults.
func DefaultOptions() Options {
	return Options{
		Initial:            0.1,
		UnderutilizedBelow: 1e-5,
		LoadedAbove:        0.2,
		Urgency:            0.03,
	}
}

// Builder constructs Options via chainable setters, mirroring the teacher's
// default-then-validate config idiom.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder seeded with DefaultOptions.
func NewBuilder() *Builder {
	return &Builder{opts: DefaultOptions()}
}

// UnderutilizedBelow sets the low-water threshold.
func (b *Builder) UnderutilizedBelow(v float64) *Builder {
	b.opts.UnderutilizedBelow = v
	return b
}

// LoadedAbove sets the high-water threshold.
func (b *Builder) LoadedAbove(v float64) *Builder {
	b.opts.LoadedAbove = v
	return b
}

// Initial sets the EWMA's starting/reset value.
func (b *Builder) Initial(v float64) *Builder {
	b.opts.Initial = v
	return b
}

// Urgency sets α, the newest-sample weight.
func (b *Builder) Urgency(v float64) *Builder {
	b.opts.Urgency = v
	return b
}

// Build validates and returns the assembled Options.
func (b *Builder) Build() (Options, error) {
	o := b.opts
	if o.Urgency <= 0 || o.Urgency >= 1 {
		return Options{}, &ErrInvalidOptions{Field: "Urgency", Value: o.Urgency}
	}
	if o.UnderutilizedBelow < 0 || o.UnderutilizedBelow >= o.LoadedAbove {
		return Options{}, &ErrInvalidOptions{Field: "UnderutilizedBelow", Value: o.UnderutilizedBelow}
	}
	if o.LoadedAbove <= 0 || o.LoadedAbove > 1 {
		return Options{}, &ErrInvalidOptions{Field: "LoadedAbove", Value: o.LoadedAbove}
	}
	if o.Initial < 0 || o.Initial > 1 {
		return Options{}, &ErrInvalidOptions{Field: "Initial", Value: o.Initial}
	}
	return o, nil
}

// ErrInvalidOptions reports a tunable outside its valid range.
type ErrInvalidOptions struct {
	Field string
	Value float64
}

func (e *ErrInvalidOptions) Error() string {
	return "pool: invalid option " + e.Field
}

// Pool wraps a balance.Balancer over a pooldiscover.Discover, elastically
// scaling the live backend set via an EWMA estimate of recent saturation.
type Pool[Req, Resp, Target any, S balance.Endpoint[Req, Resp]] struct {
	balancer *balance.Balancer[uint64, Req, Resp, S]
	discover *pooldiscover.Discover[Target, S]
	opts     Options
	ewma     float64
}

// New wraps factory/target in a pooldiscover.Discover and a balance.Balancer,
// and returns a Pool driving both with opts.
func New[Req, Resp, Target any, S balance.Endpoint[Req, Resp]](
	factory pooldiscover.Factory[Target, S],
	target Target,
	opts Options,
	balancerOpts ...balance.Option[uint64, Req, Resp, S],
) *Pool[Req, Resp, Target, S] {
	discover := pooldiscover.New[Target, S](factory, target)
	balancer := balance.New[uint64, Req, Resp, S](discover, balancerOpts...)
	return &Pool[Req, Resp, Target, S]{
		balancer: balancer,
		discover: discover,
		opts:     opts,
		ewma:     opts.Initial,
	}
}

// EWMA reports the current saturation estimate, for diagnostics.
func (p *Pool[Req, Resp, Target, S]) EWMA() float64 {
	return p.ewma
}

// PollReady delegates to the inner balancer and updates the EWMA/level
// signal per spec.md §4.5.
func (p *Pool[Req, Resp, Target, S]) PollReady(ctx context.Context) (balance.Status, error) {
	status, err := p.balancer.PollReady(ctx)
	if err != nil {
		return status, err
	}

	switch status {
	case balance.Ready:
		p.ewma = (1 - p.opts.Urgency) * p.ewma
		if p.ewma < p.opts.UnderutilizedBelow {
			p.discover.SetLevel(pooldiscover.Low)
			if p.discover.Services() > 1 {
				p.ewma = p.opts.Initial
			}
		} else {
			p.discover.SetLevel(pooldiscover.Normal)
		}
	case balance.NotReady:
		if p.discover.Making() {
			return balance.NotReady, nil
		}
		p.ewma = p.opts.Urgency + (1-p.opts.Urgency)*p.ewma
		if p.ewma > p.opts.LoadedAbove {
			p.discover.SetLevel(pooldiscover.High)
		} else {
			p.discover.SetLevel(pooldiscover.Normal)
		}
	}
	return status, nil
}

// Dispatch forwards to the inner balancer unchanged.
func (p *Pool[Req, Resp, Target, S]) Dispatch(ctx context.Context, req Req) future.Future[Resp] {
	return p.balancer.Dispatch(ctx, req)
}

// Len reports the number of live backends in the pool.
func (p *Pool[Req, Resp, Target, S]) Len() int {
	return p.balancer.Len()
}
