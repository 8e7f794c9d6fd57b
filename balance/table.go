package balance

// endpointTable is an ordered, keyed collection of endpoints with O(1)
// lookup by key or position and O(1) removal via swap-remove. Insertion order
// is preserved except across a removal, where the last element takes the
// removed slot — callers holding a positional index must repair it via
// repairIndex.
type endpointTable[K comparable, S any] struct {
	keys     []K
	services []S
	index    map[K]int
}

func newEndpointTable[K comparable, S any]() *endpointTable[K, S] {
	return &endpointTable[K, S]{index: make(map[K]int)}
}

func (t *endpointTable[K, S]) Len() int { return len(t.keys) }

// Insert adds k/s, or replaces the service in place if k is already present.
// Replacing in place never reorders the table, so it never requires index
// repair.
func (t *endpointTable[K, S]) Insert(k K, s S) {
	if i, ok := t.index[k]; ok {
		t.services[i] = s
		return
	}
	t.index[k] = len(t.keys)
	t.keys = append(t.keys, k)
	t.services = append(t.services, s)
}

// Get returns the key and service at position i.
func (t *endpointTable[K, S]) Get(i int) (K, S) {
	return t.keys[i], t.services[i]
}

// GetService returns the service at position i.
func (t *endpointTable[K, S]) GetService(i int) S {
	return t.services[i]
}

// Remove removes the endpoint keyed by k, if present, returning the position
// it occupied before removal (for index repair) and whether it was found.
func (t *endpointTable[K, S]) Remove(k K) (removedAt int, ok bool) {
	i, ok := t.index[k]
	if !ok {
		return 0, false
	}
	t.SwapRemove(i)
	return i, true
}

// SwapRemove removes position i, moving the table's last element (if any)
// into slot i. The removed service is returned.
func (t *endpointTable[K, S]) SwapRemove(i int) S {
	n := len(t.keys)
	last := n - 1

	removedKey := t.keys[i]
	removed := t.services[i]

	if i != last {
		t.keys[i] = t.keys[last]
		t.services[i] = t.services[last]
		t.index[t.keys[i]] = i
	}

	delete(t.index, removedKey)
	t.keys = t.keys[:last]
	t.services = t.services[:last]

	return removed
}

// repairIndex applies the index-repair rule for a swap-remove of position rm
// in a table whose size before the removal was n, to a held positional index.
// Returns the repaired index, or false if the held index referred to the
// removed endpoint.
func repairIndex(held, rm, n int) (int, bool) {
	switch {
	case held == rm:
		return 0, false
	case held == n-1:
		return rm, true
	default:
		return held, true
	}
}
