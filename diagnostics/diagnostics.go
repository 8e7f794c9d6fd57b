// Package diagnostics reports on the live load distribution across a
// balancer's endpoint table, for tests and operational visibility. It is not
// part of the core poll/dispatch contract.
package diagnostics

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Snapshot is the load of every live endpoint at one instant, in table order.
type Snapshot []float64

// Median returns the median load in the snapshot, or 0 for an empty snapshot.
func (s Snapshot) Median() float64 {
	return s.Quantile(0.5)
}

// Quantile returns the p-quantile (0 <= p <= 1) of the snapshot's loads,
// following the teacher's sort-then-stat.Quantile idiom.
func (s Snapshot) Quantile(p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, s)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// SelectionHistogram counts, for a sequence of selected table indices, how
// many times each index was chosen. Used by fairness/weighted-ratio property
// tests (spec.md §8 properties 5 and 6) to compute observed frequencies.
type SelectionHistogram struct {
	counts map[int]int
	total  int
}

// NewSelectionHistogram returns an empty histogram.
func NewSelectionHistogram() *SelectionHistogram {
	return &SelectionHistogram{counts: make(map[int]int)}
}

// Record tallies one selection of index i.
func (h *SelectionHistogram) Record(i int) {
	h.counts[i]++
	h.total++
}

// Frequency returns the observed selection frequency of index i, in [0, 1].
func (h *SelectionHistogram) Frequency(i int) float64 {
	if h.total == 0 {
		return 0
	}
	return float64(h.counts[i]) / float64(h.total)
}

// Total returns the number of recorded selections.
func (h *SelectionHistogram) Total() int {
	return h.total
}
