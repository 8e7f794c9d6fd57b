package balance

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/kestrelbalance/p2c/future"
	"github.com/kestrelbalance/p2c/loadmetric"
)

// randSource is the subset of *rand.Rand the balancer needs. Injecting one
// lets tests pin the sample sequence (see the S2/S3 scenarios) and lets a
// fleet of balancers share an RNG without reusing its internal state across
// goroutines (the caller is responsible for that safety if they share one).
type randSource interface {
	Intn(n int) int
}

// Option configures a Balancer at construction time.
type Option[K comparable, Req, Resp any, S Endpoint[Req, Resp]] func(*Balancer[K, Req, Resp, S])

// WithRand overrides the balancer's RNG. Useful for deterministic tests and
// for sharing a single entropy source across many balancer instances.
func WithRand[K comparable, Req, Resp any, S Endpoint[Req, Resp]](r randSource) Option[K, Req, Resp, S] {
	return func(b *Balancer[K, Req, Resp, S]) { b.rng = r }
}

// WithLogger overrides the logger used to report endpoint evictions. Defaults
// to log.Default().
func WithLogger[K comparable, Req, Resp any, S Endpoint[Req, Resp]](l *log.Logger) Option[K, Req, Resp, S] {
	return func(b *Balancer[K, Req, Resp, S]) { b.logger = l }
}

// Balancer selects one endpoint per request from a live set fed by a
// Discoverer, using Power-of-Two-Choices: draw two samples uniformly at
// random, dispatch to whichever reports the lesser load.
//
// Balancer is not safe for concurrent use. It is driven by a single task
// through the two-phase PollReady/Dispatch contract, same as a single
// endpoint would be.
type Balancer[K comparable, Req, Resp any, S Endpoint[Req, Resp]] struct {
	discover Discoverer[K, S]
	table    *endpointTable[K, S]

	// readyIndex holds a position into table chosen by the most recent
	// successful PollReady, or nil if no endpoint is currently held ready.
	readyIndex *int

	rng    randSource
	logger *log.Logger
}

// New constructs a Balancer over the given discovery stream.
func New[K comparable, Req, Resp any, S Endpoint[Req, Resp]](d Discoverer[K, S], opts ...Option[K, Req, Resp, S]) *Balancer[K, Req, Resp, S] {
	b := &Balancer[K, Req, Resp, S]{
		discover: d,
		table:    newEndpointTable[K, S](),
		rng:      defaultRand(),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func defaultRand() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err == nil {
		seed = int64(binary.BigEndian.Uint64(buf[:]))
	} else {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Len reports the number of live endpoints. Exposed for diagnostics and
// tests; not part of the core poll/dispatch contract.
func (b *Balancer[K, Req, Resp, S]) Len() int { return b.table.Len() }

// PollReady drains pending discovery deltas, re-validates any held ready
// index, and otherwise runs a bounded number of P2C selection rounds to find
// a ready endpoint. The selection rounds are run by selectReady.
func (b *Balancer[K, Req, Resp, S]) PollReady(ctx context.Context) (Status, error) {
	if err := b.drainDiscovery(ctx); err != nil {
		return NotReady, err
	}

	if b.readyIndex != nil {
		i := *b.readyIndex
		status, err := b.table.GetService(i).PollReady(ctx)
		switch {
		case err != nil:
			b.evict(i, err)
			b.readyIndex = nil
		case status == Ready:
			return Ready, nil
		default:
			b.readyIndex = nil
		}
	}

	return b.selectReady(ctx)
}

// Dispatch forwards req to the endpoint most recently chosen by PollReady.
// Calling Dispatch without an intervening Ready result from PollReady is a
// programming error and panics with ErrMisuse.
func (b *Balancer[K, Req, Resp, S]) Dispatch(ctx context.Context, req Req) future.Future[Resp] {
	if b.readyIndex == nil {
		panic(ErrMisuse)
	}
	i := *b.readyIndex
	b.readyIndex = nil
	return b.table.GetService(i).Dispatch(ctx, req)
}

func (b *Balancer[K, Req, Resp, S]) drainDiscovery(ctx context.Context) error {
	for {
		delta, status, err := b.discover.Poll(ctx)
		if err != nil {
			return &ErrBalance{Err: err}
		}
		if status == NotReady {
			return nil
		}

		switch delta.Kind {
		case Insert:
			b.table.Insert(delta.Key, delta.Endpoint)
		case Remove:
			n := b.table.Len()
			if removedAt, ok := b.table.Remove(delta.Key); ok && b.readyIndex != nil {
				if repaired, stillHeld := repairIndex(*b.readyIndex, removedAt, n); stillHeld {
					b.readyIndex = &repaired
				} else {
					b.readyIndex = nil
				}
			}
		}
	}
}

func (b *Balancer[K, Req, Resp, S]) evict(i int, err error) {
	key, _ := b.table.Get(i)
	b.logger.Printf("balance: evicting endpoint %v: readiness failed: %v", key, err)
	b.table.SwapRemove(i)
}

// selectReady runs the P2C selection rounds described in the spec's §4.2.
func (b *Balancer[K, Req, Resp, S]) selectReady(ctx context.Context) (Status, error) {
	switch n := b.table.Len(); {
	case n == 0:
		return NotReady, nil
	case n == 1:
		return b.selectSingle(ctx)
	default:
		return b.selectP2C(ctx, n)
	}
}

func (b *Balancer[K, Req, Resp, S]) selectSingle(ctx context.Context) (Status, error) {
	status, err := b.table.GetService(0).PollReady(ctx)
	if err != nil {
		b.evict(0, err)
		return NotReady, nil
	}
	if status == Ready {
		i := 0
		b.readyIndex = &i
		return Ready, nil
	}
	return NotReady, nil
}

func (b *Balancer[K, Req, Resp, S]) selectP2C(ctx context.Context, n int) (Status, error) {
	rounds := n / 2
	if rounds < 1 {
		rounds = 1
	}

	for r := 0; r < rounds; r++ {
		n = b.table.Len()
		if n < 2 {
			// the table shrank below two live endpoints mid-search; the
			// next PollReady call will re-evaluate the n==0/n==1 cases
			// fresh, so there's nothing more this call can do.
			return NotReady, nil
		}

		a, bIdx := distinctSample(b.rng, n)

		aAlive, bAlive := true, true
		var readyA, readyB bool
		var la, lb loadmetric.Metric

		statusA, errA := b.table.GetService(a).PollReady(ctx)
		switch {
		case errA != nil:
			b.evict(a, errA)
			aAlive = false
			if repaired, stillHeld := repairIndex(bIdx, a, n); stillHeld {
				bIdx = repaired
			} else {
				bAlive = false
			}
			n = b.table.Len()
		case statusA == Ready:
			readyA = true
			la = b.table.GetService(a).Load()
		}

		if bAlive {
			statusB, errB := b.table.GetService(bIdx).PollReady(ctx)
			switch {
			case errB != nil:
				b.evict(bIdx, errB)
				bAlive = false
				if aAlive {
					if repaired, stillHeld := repairIndex(a, bIdx, n); stillHeld {
						a = repaired
					} else {
						aAlive = false
					}
				}
			case statusB == Ready:
				readyB = true
				lb = b.table.GetService(bIdx).Load()
			}
		}

		var chosen int
		switch {
		case readyA && readyB:
			switch {
			case math.IsNaN(lb):
				// NaN is incomparable and always loses; ties also fall back
				// to the first sample.
				chosen = a
			case math.IsNaN(la):
				chosen = bIdx
			case la <= lb:
				chosen = a
			default:
				chosen = bIdx
			}
		case readyA:
			chosen = a
		case readyB:
			chosen = bIdx
		default:
			continue
		}

		b.readyIndex = &chosen
		return Ready, nil
	}

	return NotReady, nil
}

// distinctSample draws two distinct indices uniformly without replacement
// from [0, n), n >= 2. Grounded on the go-zero P2C picker's technique: sample
// a freely, then sample b from the n-1 remaining slots and shift it past a.
func distinctSample(rng randSource, n int) (a, b int) {
	a = rng.Intn(n)
	b = rng.Intn(n - 1)
	if b >= a {
		b++
	}
	return a, b
}
