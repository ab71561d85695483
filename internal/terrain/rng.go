package terrain

// cellRand is a deterministic per-cell random stream. The state is seeded by
// a splitmix-style hash of (worldSeed, wx, wy) and advanced by an LCG, so two
// cells never share a stream and the draw sequence is identical on every host.
type cellRand struct {
	state uint64
}

func newCellRand(seed int64, x, y int) *cellRand {
	h := uint64(seed)
	h ^= uint64(int64(x)) * 0x9E3779B97F4A7C15
	h = (h ^ (h >> 30)) * 0xBF58476D1CE4E5B9
	h ^= uint64(int64(y)) * 0xC2B2AE3D27D4EB4F
	h = (h ^ (h >> 27)) * 0x94D049BB133111EB
	h ^= h >> 31
	if h == 0 {
		h = 0x9E3779B97F4A7C15
	}
	return &cellRand{state: h}
}

func (r *cellRand) next() uint64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

// Float64 returns a uniform draw in [0, 1).
func (r *cellRand) Float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// IntRange returns a uniform draw in [lo, hi].
func (r *cellRand) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + int(r.next()%uint64(hi-lo+1))
}

// FloatRange returns a uniform draw in [lo, hi).
func (r *cellRand) FloatRange(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
