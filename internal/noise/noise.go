package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Default fBm parameters used by the terrain fields.
const (
	DefaultOctaves     = 4
	DefaultLacunarity  = 2.0
	DefaultPersistence = 0.5

	warpAmplitude = 30.0
	warpFrequency = 0.01

	// SeaLevelRaw is the raw-space height above which river carving applies.
	SeaLevelRaw = 0.3
)

// Noise produces deterministic continuous scalar fields over the 2D plane.
// Three independent perlin streams are derived from the one world seed so
// that height, climate and moisture do not correlate.
type Noise struct {
	terrain  *perlin.Perlin
	climate  *perlin.Perlin
	moisture *perlin.Perlin
	seed     int64
}

// New creates a noise engine seeded with the given world seed.
func New(seed int64) *Noise {
	// alpha=2, beta=2, n=3 give good terrain-like noise
	return &Noise{
		terrain:  perlin.NewPerlin(2, 2, 3, seed),
		climate:  perlin.NewPerlin(2, 2, 3, seed+1),
		moisture: perlin.NewPerlin(2, 2, 3, seed+2),
		seed:     seed,
	}
}

// Seed returns the world seed this engine was created with.
func (n *Noise) Seed() int64 {
	return n.seed
}

// FBM sums octaves of terrain noise at exponentially rising frequency and
// decaying amplitude, normalized by cumulative amplitude. Output is in [-1, 1].
func (n *Noise) FBM(x, y float64, octaves int, lacunarity, persistence float64) float64 {
	return fbm(n.terrain, x, y, octaves, lacunarity, persistence)
}

func fbm(p *perlin.Perlin, x, y float64, octaves int, lacunarity, persistence float64) float64 {
	var sum, total float64
	amplitude := 1.0
	frequency := 1.0
	for i := 0; i < octaves; i++ {
		sum += amplitude * p.Noise2D(x*frequency, y*frequency)
		total += amplitude
		frequency *= lacunarity
		amplitude *= persistence
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// DomainWarp displaces the sampling coordinate by a noise field to produce
// more natural shapes.
func (n *Noise) DomainWarp(x, y float64) (float64, float64) {
	fx := x * warpFrequency
	fy := y * warpFrequency
	wx := x + warpAmplitude*fbm(n.terrain, fx, fy, DefaultOctaves, DefaultLacunarity, DefaultPersistence)
	wy := y + warpAmplitude*fbm(n.terrain, fx+5.2, fy+1.3, DefaultOctaves, DefaultLacunarity, DefaultPersistence)
	return wx, wy
}

// Height returns the raw terrain height at (x, y) in [-1, 1], with river
// valleys carved into land above raw sea level.
func (n *Noise) Height(x, y float64) float64 {
	return n.HeightOctaves(x, y, DefaultOctaves)
}

// HeightOctaves is Height with an explicit octave count. Callers that hit a
// numeric edge case regenerate the cell with the next octave set.
func (n *Noise) HeightOctaves(x, y float64, octaves int) float64 {
	wx, wy := n.DomainWarp(x, y)
	h := fbm(n.terrain, wx*0.01, wy*0.01, octaves, DefaultLacunarity, DefaultPersistence)
	if h > SeaLevelRaw {
		h -= n.RiverMap(x, y, h) * 0.1 * math.Min(1, (h-SeaLevelRaw)*2.5)
	}
	return clamp(h, -1, 1)
}

// Temperature returns the temperature at (x, y) in [0, 1]. h is the
// normalized height, which cools the field with altitude.
func (n *Noise) Temperature(x, y, h float64) float64 {
	latitude := math.Cos((y / 1000.0) * math.Pi)
	t := latitude*math.Max(0, 1-1.5*h) + fbm(n.climate, x*0.02, y*0.02, 3, DefaultLacunarity, DefaultPersistence)*0.2
	return clamp(t, 0, 1)
}

// Precipitation returns rainfall at (x, y) in [0, 1], reduced by rain shadow
// at altitude and scaled toward temperate latitudes.
func (n *Noise) Precipitation(x, y, h, t float64) float64 {
	base := fbm(n.moisture, x*0.01+100, y*0.01+100, DefaultOctaves, DefaultLacunarity, DefaultPersistence)*0.5 + 0.5
	shadow := math.Max(0, h-0.5) * 2 * math.Max(0, fbm(n.moisture, x*0.001, y*0.001, 1, DefaultLacunarity, DefaultPersistence)) * 0.5
	p := base - shadow
	p *= 0.5 + (1-math.Abs(t-0.5)*2)*0.5
	return clamp(p, 0, 1)
}

// RiverMap returns river intensity at (x, y) in [0, 1]. Zero at or below raw
// sea level; elsewhere a ridged inversion of warped fBm attenuated by height.
func (n *Noise) RiverMap(x, y, h float64) float64 {
	if h <= SeaLevelRaw {
		return 0
	}
	wx, wy := n.DomainWarp(x, y)
	v := fbm(n.terrain, wx*0.04, wy*0.04, 3, DefaultLacunarity, DefaultPersistence)
	v = v*0.5 + 0.5
	ridge := 1 - math.Abs(2*v-1)
	return ridge * math.Min(1, (h-SeaLevelRaw)*2.5)
}

// LakeMap returns the lake-basin field at (x, y) in [0, 1]. Shallow water
// inside a high-valued basin classifies as lake rather than ocean.
func (n *Noise) LakeMap(x, y float64) float64 {
	v := fbm(n.moisture, (x+700)*0.005, (y+700)*0.005, 2, DefaultLacunarity, DefaultPersistence)
	return v*0.5 + 0.5
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
