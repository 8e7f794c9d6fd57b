// Package pooldiscover adapts a backend factory into a balance.Discoverer,
// growing and shrinking the live endpoint count in response to a load-level
// signal written by an enclosing pool.Pool.
package pooldiscover

import (
	"context"
	"fmt"

	"github.com/kestrelbalance/p2c/balance"
	"github.com/kestrelbalance/p2c/future"
)

// Level is a load-level signal, written by Pool and read only by Discover;
// both run on the same task, so no synchronization is required.
type Level int

const (
	// Normal is the steady state: neither grow nor shrink. It is also the
	// zero value, so a freshly constructed Discover starts neutral rather
	// than assuming underutilization before Pool has ever observed it.
	Normal Level = iota
	// Low indicates the pool is underutilized: Discover may shrink.
	Low
	// High indicates saturation: Discover should grow, if it isn't already.
	High
)

func (l Level) String() string {
	switch l {
	case Normal:
		return "Normal"
	case Low:
		return "Low"
	case High:
		return "High"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Factory constructs new backend services for Target values, reporting its
// own readiness (e.g. a connection-pool limit or rate gate) before Make is
// called.
type Factory[Target any, S any] interface {
	PollReady(ctx context.Context) (balance.Status, error)
	Make(ctx context.Context, target Target) (future.Future[S], error)
}

// Discover adapts a Factory into a balance.Discoverer[uint64, S], assigning
// each constructed backend a monotonically increasing key.
type Discover[Target any, S any] struct {
	factory Factory[Target, S]
	target  Target

	services uint64
	nextID   uint64
	making   future.Future[S]
	level    Level
}

// New returns a Discover that constructs backends for target via factory.
// Keys start at 1, so the "latest id" always equals the live service count —
// matching the pool-discovery algorithm's literal Remove(services) rule.
func New[Target any, S any](factory Factory[Target, S], target Target) *Discover[Target, S] {
	return &Discover[Target, S]{factory: factory, target: target, nextID: 1}
}

// SetLevel is called by an enclosing Pool to signal load state. It is the
// only write to level; Poll is the only reader.
func (d *Discover[Target, S]) SetLevel(l Level) {
	d.level = l
}

// Services reports the current count of live backends (inserts minus
// removes), used by Pool to decide whether a removal would leave the pool
// empty.
func (d *Discover[Target, S]) Services() uint64 {
	return d.services
}

// Making reports whether a construction is currently in flight.
func (d *Discover[Target, S]) Making() bool {
	return d.making != nil
}

// Poll implements balance.Discoverer, running the five-step pool-discovery
// algorithm: start a make when starved or saturated, advance an in-flight
// make, shrink when underutilized, else report NotReady.
func (d *Discover[Target, S]) Poll(ctx context.Context) (balance.Delta[uint64, S], balance.Status, error) {
	var zero balance.Delta[uint64, S]

	if d.making == nil && d.services == 0 {
		if err := d.startMake(ctx); err != nil {
			return zero, NotReadyOrFail(err)
		}
	} else if d.making == nil && d.level == High {
		status, err := d.factory.PollReady(ctx)
		if err != nil {
			return zero, balance.NotReady, &balance.ErrBalance{Err: err}
		}
		if status == balance.Ready {
			if err := d.startMake(ctx); err != nil {
				return zero, NotReadyOrFail(err)
			}
		}
	}

	if d.making != nil {
		svc, done, err := d.making.TryWait()
		if !done {
			return zero, balance.NotReady, nil
		}
		d.making = nil
		if err != nil {
			return zero, balance.NotReady, fmt.Errorf("pooldiscover: make failed: %w", err)
		}
		id := d.nextID
		d.nextID++
		d.services++
		d.level = Normal
		return balance.Delta[uint64, S]{Kind: balance.Insert, Key: id, Endpoint: svc}, balance.Ready, nil
	}

	if d.level == Low && d.services > 1 {
		d.level = Normal
		removedID := d.services
		d.services--
		return balance.Delta[uint64, S]{Kind: balance.Remove, Key: removedID}, balance.Ready, nil
	}

	return zero, balance.NotReady, nil
}

func (d *Discover[Target, S]) startMake(ctx context.Context) error {
	f, err := d.factory.Make(ctx, d.target)
	if err != nil {
		return err
	}
	d.making = f
	return nil
}

// NotReadyOrFail wraps a factory error the way balance.ErrBalance does for
// discovery errors. The Discover stays usable: a later Poll may start a new
// construction.
func NotReadyOrFail(err error) (balance.Status, error) {
	return balance.NotReady, &balance.ErrBalance{Err: err}
}
