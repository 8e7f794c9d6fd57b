// Package balance implements a client-side Power-of-Two-Choices load
// balancer: a cooperatively-scheduled middleware that maintains a live set of
// endpoints fed by a discovery stream and selects one endpoint per request by
// comparing two random samples' load.
package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrelbalance/p2c/future"
	"github.com/kestrelbalance/p2c/loadmetric"
)

// Status is the three-valued outcome of PollReady, minus the error case,
// which Go expresses as a second return value instead of a third enum
// variant.
type Status int

const (
	// NotReady means no endpoint is currently selectable; try again later.
	NotReady Status = iota
	// Ready means an endpoint has been selected and Dispatch may be called.
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "Ready"
	}
	return "NotReady"
}

// Endpoint is the capability an endpoint service exposes to a Balancer:
// two-phase readiness, asynchronous dispatch, and a load metric. Load must be
// safe to call at any time after construction.
type Endpoint[Req, Resp any] interface {
	loadmetric.Load
	// PollReady reports whether the endpoint can accept exactly one more
	// request. A non-nil error means the endpoint has failed terminally and
	// should be evicted.
	PollReady(ctx context.Context) (Status, error)
	// Dispatch forwards req to the endpoint and returns a handle to its
	// eventual response. Dispatch must not block on the response; failures
	// that occur after dispatch are reported through the returned Future.
	Dispatch(ctx context.Context, req Req) future.Future[Resp]
}

// DeltaKind distinguishes an insertion from a removal in a discovery delta.
type DeltaKind int

const (
	// Insert adds or replaces the endpoint keyed by Delta.Key.
	Insert DeltaKind = iota
	// Remove drops the endpoint keyed by Delta.Key.
	Remove
)

// Delta is a single discovery-stream event.
type Delta[K comparable, S any] struct {
	Kind     DeltaKind
	Key      K
	Endpoint S // meaningful only when Kind == Insert
}

// Discoverer is a lazy, possibly infinite sequence of discovery deltas. Poll
// returns NotReady (with a zero Delta) when no delta is available right now;
// callers should try again later. A non-nil error means the stream has
// failed; Balancer.PollReady reports it wrapped in ErrBalance and polls the
// stream again on its next call.
type Discoverer[K comparable, S any] interface {
	Poll(ctx context.Context) (Delta[K, S], Status, error)
}

var (
	// ErrMisuse is the panic value when Dispatch is called without a
	// preceding Ready from PollReady. It is a programming error, not a
	// runtime condition callers are expected to recover from.
	ErrMisuse = errors.New("balance: dispatch called without a prior Ready poll")
)

// ErrBalance wraps a discovery-stream failure observed by PollReady.
type ErrBalance struct {
	Err error
}

func (e *ErrBalance) Error() string { return fmt.Sprintf("balance: discovery failed: %v", e.Err) }
func (e *ErrBalance) Unwrap() error { return e.Err }
