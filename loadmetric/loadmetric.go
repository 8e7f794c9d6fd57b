// Package loadmetric defines the Load contract shared by every endpoint in a
// balance.Balancer, plus a handful of concrete metrics good enough to wire up
// an example or a test without pulling in a real backend.
package loadmetric

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Metric is the magnitude a Load reports. Lower is less loaded. A NaN metric
// is treated by balance.Balancer as incomparable and always loses the P2C
// comparison to a non-NaN sample.
type Metric = float64

// Load exposes a comparable load metric for an endpoint. Load must be safe to
// call at any time after construction, including concurrently with Dispatch.
type Load interface {
	Load() Metric
}

// Constant reports a fixed load regardless of traffic. Useful for endpoints
// whose readiness is the only signal worth balancing on, and for tests that
// want to pin P2C's comparison to the RNG alone.
type Constant Metric

// Load implements Load.
func (c Constant) Load() Metric { return Metric(c) }

// PendingRequests tracks the number of requests currently dispatched and not
// yet completed. Callers wrap their dispatch path with Inc/Dec; this mirrors
// the teacher's core.MetricsManager in-flight counter, generalized to any
// endpoint rather than a single global proxy counter.
type PendingRequests struct {
	inflight int64
}

// Inc records the start of a request.
func (p *PendingRequests) Inc() { atomic.AddInt64(&p.inflight, 1) }

// Dec records the completion of a request.
func (p *PendingRequests) Dec() { atomic.AddInt64(&p.inflight, -1) }

// Load implements Load.
func (p *PendingRequests) Load() Metric {
	return Metric(atomic.LoadInt64(&p.inflight))
}

// PeakEWMA tracks an exponentially-decaying estimate of round-trip latency,
// penalized by the current in-flight count, following the standard peak-EWMA
// load signal used by the teacher's probe latency tracking and by P2C
// balancers elsewhere in the pack (e.g. go-zero's lag*(inflight+1) load
// function): load = rttEstimate * (inflight + 1).
//
// The decay uses Newton's law of cooling, the same model applied by every
// peak-EWMA implementation in the pack: between two observations spaced td
// apart, the previous estimate is weighted by exp(-td/decay).
type PeakEWMA struct {
	decay time.Duration

	mu       sync.Mutex
	inflight int64
	rtt      float64 // microseconds
	last     time.Time
	history  []float64 // recent per-request latencies, for diagnostics only
}

// NewPeakEWMA constructs a PeakEWMA with the given decay period (time for a
// past observation's weight to fall to 1/e). A non-positive decay defaults to
// one second, matching Finagle's default.
func NewPeakEWMA(decay time.Duration) *PeakEWMA {
	if decay <= 0 {
		decay = time.Second
	}
	return &PeakEWMA{decay: decay}
}

// Start records the beginning of a request and returns a function to call on
// completion, which records the observed latency.
func (p *PeakEWMA) Start() func() {
	atomic.AddInt64(&p.inflight, 1)
	start := time.Now()
	var done int32
	return func() {
		if !atomic.CompareAndSwapInt32(&done, 0, 1) {
			return
		}
		atomic.AddInt64(&p.inflight, -1)
		p.observe(time.Since(start))
	}
}

func (p *PeakEWMA) observe(rtt time.Duration) {
	us := float64(rtt.Microseconds())

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.last.IsZero() {
		p.rtt = us
	} else {
		td := now.Sub(p.last)
		if td < 0 {
			td = 0
		}
		w := math.Exp(-float64(td) / float64(p.decay))
		p.rtt = p.rtt*w + us*(1-w)
	}
	p.last = now

	const maxHistory = 256
	p.history = append(p.history, us)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
}

// Load implements Load: the current RTT estimate weighted by in-flight count.
func (p *PeakEWMA) Load() Metric {
	inflight := atomic.LoadInt64(&p.inflight)

	p.mu.Lock()
	rtt := p.rtt
	p.mu.Unlock()

	return Metric(rtt * float64(inflight+1))
}

// MedianLatencyMicros reports the median of recently observed latencies,
// using gonum/stat the same way the teacher's pkg/probe/probe.go computes
// MedianRIF/MedianLatency. Returns 0 if no observations have been recorded.
func (p *PeakEWMA) MedianLatencyMicros() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.history)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, p.history)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
