package htm

import "math/rand"

// rng is the single seeded random source a TemporalMemory instance draws
// every tie-break and without-replacement sample from, so that identical
// configuration, seed, and input stream produce identical output. The
// teacher's own temporalMemory.go and segment.go carried a commented-out
// "math/rand" import; this wraps that intended source behind one type.
//
// math/rand.Rand exposes no way to snapshot or restore its internal
// state, so calls records the argument to every Intn draw in sequence;
// replay reconstructs an equivalent generator by re-seeding and redrawing
// the same sequence of Intn calls, discarding the results.
type rng struct {
	r     *rand.Rand
	seed  int64
	calls []int
}

func newRNG(seed int) *rng {
	s := int64(seed)
	return &rng{r: rand.New(rand.NewSource(s)), seed: s}
}

func (g *rng) intn(n int) int {
	g.calls = append(g.calls, n)
	return g.r.Intn(n)
}

func (g *rng) replay(calls []int) {
	for _, n := range calls {
		g.r.Intn(n)
	}
	g.calls = append([]int(nil), calls...)
}

// sampleWithoutReplacement draws min(n, len(pool)) distinct elements from
// pool. If n >= len(pool) the whole pool is returned (order preserved);
// otherwise a partial Fisher-Yates shuffle draws n elements uniformly at
// random without replacement.
func (g *rng) sampleWithoutReplacement(pool []CellIdx, n int) []CellIdx {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n >= len(pool) {
		result := make([]CellIdx, len(pool))
		copy(result, pool)
		return result
	}
	shuffled := make([]CellIdx, len(pool))
	copy(shuffled, pool)
	for i := 0; i < n; i++ {
		j := i + g.intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}
