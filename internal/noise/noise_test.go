package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterminism(t *testing.T) {
	a := New(12345)
	b := New(12345)

	for x := -50; x <= 50; x += 7 {
		for y := -50; y <= 50; y += 7 {
			fx, fy := float64(x), float64(y)
			require.Equal(t, a.Height(fx, fy), b.Height(fx, fy))

			h := (a.Height(fx, fy) + 1) / 2
			require.Equal(t, a.Temperature(fx, fy, h), b.Temperature(fx, fy, h))
			temp := a.Temperature(fx, fy, h)
			require.Equal(t, a.Precipitation(fx, fy, h, temp), b.Precipitation(fx, fy, h, temp))
		}
	}
}

func TestSeedChangesField(t *testing.T) {
	a := New(1)
	b := New(2)

	differs := false
	for x := 0; x < 100 && !differs; x += 3 {
		if a.Height(float64(x), 0) != b.Height(float64(x), 0) {
			differs = true
		}
	}
	assert.True(t, differs, "different seeds should produce different height fields")
}

func TestFieldRanges(t *testing.T) {
	n := New(777)
	for x := -200; x <= 200; x += 13 {
		for y := -200; y <= 200; y += 13 {
			fx, fy := float64(x), float64(y)

			h := n.Height(fx, fy)
			require.GreaterOrEqual(t, h, -1.0)
			require.LessOrEqual(t, h, 1.0)
			require.False(t, math.IsNaN(h))

			nH := (h + 1) / 2
			temp := n.Temperature(fx, fy, nH)
			require.GreaterOrEqual(t, temp, 0.0)
			require.LessOrEqual(t, temp, 1.0)

			precip := n.Precipitation(fx, fy, nH, temp)
			require.GreaterOrEqual(t, precip, 0.0)
			require.LessOrEqual(t, precip, 1.0)

			river := n.RiverMap(fx, fy, h)
			require.GreaterOrEqual(t, river, 0.0)
			require.LessOrEqual(t, river, 1.0)

			lake := n.LakeMap(fx, fy)
			require.GreaterOrEqual(t, lake, 0.0)
			require.LessOrEqual(t, lake, 1.0)
		}
	}
}

func TestFBMNormalized(t *testing.T) {
	n := New(42)
	tests := []struct {
		name    string
		octaves int
	}{
		{"single octave", 1},
		{"default octaves", DefaultOctaves},
		{"extra octave", DefaultOctaves + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for x := 0; x < 50; x += 5 {
				v := n.FBM(float64(x)*0.01, 0.3, tt.octaves, DefaultLacunarity, DefaultPersistence)
				assert.GreaterOrEqual(t, v, -1.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		})
	}
}

func TestFBMZeroOctaves(t *testing.T) {
	n := New(42)
	assert.Equal(t, 0.0, n.FBM(1, 1, 0, DefaultLacunarity, DefaultPersistence))
}

func TestRiverMapZeroBelowSeaLevel(t *testing.T) {
	n := New(42)
	assert.Equal(t, 0.0, n.RiverMap(10, 10, SeaLevelRaw))
	assert.Equal(t, 0.0, n.RiverMap(10, 10, -0.5))
}

func TestDomainWarpDeterministic(t *testing.T) {
	n := New(9)
	x1, y1 := n.DomainWarp(33, 44)
	x2, y2 := n.DomainWarp(33, 44)
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)

	// Warp stays within the configured amplitude.
	assert.InDelta(t, 33, x1, warpAmplitude)
	assert.InDelta(t, 44, y1, warpAmplitude)
}
