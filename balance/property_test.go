package balance

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/kestrelbalance/p2c/diagnostics"
)

// TestP2CFairnessOverEqualLoads exercises spec.md §8 property 5: over many
// calls against a stable table of equally-loaded endpoints, each endpoint's
// selection frequency approaches 1/k.
func TestP2CFairnessOverEqualLoads(t *testing.T) {
	const k = 4
	const trials = 20_000

	disc := &manualDiscoverer[string, *fakeEndpoint]{}
	for i := 0; i < k; i++ {
		disc.Push(Delta[string, *fakeEndpoint]{Kind: Insert, Key: string(rune('a' + i)), Endpoint: ready(1)})
	}

	b := New[string, string, string, *fakeEndpoint](disc, WithRand[string, string, string, *fakeEndpoint](rand.New(rand.NewSource(1))))

	hist := diagnostics.NewSelectionHistogram()
	keys := make(map[int]string)
	for i := 0; i < trials; i++ {
		status, err := b.PollReady(context.Background())
		if err != nil || status != Ready {
			t.Fatalf("trial %d: expected Ready, got %v, %v", i, status, err)
		}
		idx := *b.readyIndex
		hist.Record(idx)
		key, _ := b.table.Get(idx)
		keys[idx] = key
		_, _ = b.Dispatch(context.Background(), "req").Wait(context.Background())
	}

	wantFreq := 1.0 / float64(k)
	for idx, key := range keys {
		freq := hist.Frequency(idx)
		dev := math.Abs(freq-wantFreq) / wantFreq
		if dev > 0.15 {
			t.Fatalf("endpoint %s: observed frequency %.4f (want ~%.4f), deviation %.2f exceeds 15%%", key, freq, wantFreq, dev)
		}
	}
	if hist.Total() != trials {
		t.Fatalf("expected %d total selections, got %d", trials, hist.Total())
	}
}
