package terrain

import (
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chunkgame/server/internal/noise"
)

// Generator turns chunk coordinates into fully classified tile grids. It is
// stateless beyond the noise engine, so one instance is shared by all workers.
type Generator struct {
	noise *noise.Noise
}

func NewGenerator(n *noise.Noise) *Generator {
	return &Generator{noise: n}
}

// Seed returns the world seed backing this generator.
func (g *Generator) Seed() int64 {
	return g.noise.Seed()
}

// Chunk generates the full chunk at chunk coordinates (cx, cy), including
// beach resolution and resource placement. Byte-identical for identical
// (seed, cx, cy).
func (g *Generator) Chunk(cx, cy int) *Chunk {
	start := time.Now()
	tiles := make([]Tile, 0, ChunkSize*ChunkSize)
	for ly := 0; ly < ChunkSize; ly++ {
		for lx := 0; lx < ChunkSize; lx++ {
			wx := cx*ChunkSize + lx
			wy := cy*ChunkSize + ly
			tiles = append(tiles, g.tile(wx, wy))
		}
	}
	c := &Chunk{CX: cx, CY: cy, Tiles: tiles}
	g.resolveBeaches(c)
	g.placeResources(c)
	log.Debug("chunk generated", "chunk_x", cx, "chunk_y", cy, "duration", time.Since(start))
	return c
}

// Span generates a partial product: a single row, column or point of cells
// starting at world coordinates (sx, sy). Partial products carry forced
// resources (water, forest) but skip beach resolution and density placement,
// both of which are chunk-scoped.
func (g *Generator) Span(sx, sy int, mode Mode) *Chunk {
	var count, dx, dy int
	switch mode {
	case ModeRow:
		count, dx = ChunkSize, 1
	case ModeColumn:
		count, dy = ChunkSize, 1
	case ModePoint:
		count = 1
	default:
		return g.Chunk(sx, sy)
	}

	tiles := make([]Tile, 0, count)
	for i := 0; i < count; i++ {
		t := g.tile(sx+i*dx, sy+i*dy)
		g.placeForcedResource(&t)
		t.possibleBeach = false
		tiles = append(tiles, t)
	}
	return &Chunk{CX: sx, CY: sy, Tiles: tiles}
}

func (g *Generator) tile(wx, wy int) Tile {
	t := g.tileOctaves(wx, wy, noise.DefaultOctaves)
	if tileHasNaN(&t) {
		// Numeric edge case: regenerate with the next octave set rather
		// than emitting a zeroed cell.
		t = g.tileOctaves(wx, wy, noise.DefaultOctaves+1)
	}
	return t
}

func (g *Generator) tileOctaves(wx, wy, octaves int) Tile {
	fx := float64(wx)
	fy := float64(wy)

	h := g.noise.HeightOctaves(fx, fy, octaves)
	nH := (h + 1) / 2
	stp := math.Min(1, (math.Abs(h-g.noise.HeightOctaves(fx+1, fy, octaves))+
		math.Abs(h-g.noise.HeightOctaves(fx, fy+1, octaves)))*5)
	temp := g.noise.Temperature(fx, fy, nH)
	precip := g.noise.Precipitation(fx, fy, nH, temp)

	t := Tile{
		X:             wx,
		Y:             wy,
		Height:        h,
		NormHeight:    nH,
		Temperature:   temp,
		Precipitation: precip,
		Steepness:     stp,
	}

	if nH < SeaLevel {
		g.classifyWater(&t, fx, fy)
	} else if g.noise.RiverMap(fx, fy, h) > RiverThreshold {
		t.Water = true
		t.Biome = BiomeRiver
		t.WaterType = WaterRiver
	} else {
		g.classifyLand(&t)
	}
	t.Color = biomeColors[t.Biome]
	return t
}

func (g *Generator) classifyWater(t *Tile, fx, fy float64) {
	t.Water = true
	switch {
	case t.NormHeight < SeaLevel-OceanDeepDepth:
		t.Biome = BiomeOceanDeep
		t.WaterType = WaterOcean
	case t.NormHeight >= SeaLevel-0.1 && g.noise.LakeMap(fx, fy) > LakeThreshold:
		t.Biome = BiomeLake
		t.WaterType = WaterLake
	default:
		t.Biome = BiomeOceanShallow
		t.WaterType = WaterOcean
	}
}

// classifyLand assigns the land biome in priority order and fills the
// vegetation and soil fields from the biome profile.
func (g *Generator) classifyLand(t *Tile) {
	nH := t.NormHeight
	temp := t.Temperature
	precip := t.Precipitation

	switch {
	case t.Steepness > CliffSteepness && nH > SeaLevel:
		t.Biome = BiomeCliff
		t.Cliff = true
	case nH > MountainHeight:
		if temp < 0.2 {
			t.Biome = BiomeMountainSnow
		} else {
			t.Biome = BiomeMountain
		}
	case temp > 0.7 && precip < 0.3:
		t.Biome = BiomeDesert
	case temp < 0.3:
		if temp < 0.15 {
			t.Biome = BiomeSnow
		} else {
			t.Biome = BiomeTundra
		}
	case temp > 0.6 && precip >= 0.3 && precip < 0.5:
		t.Biome = BiomeSavanna
	case temp > 0.7 && precip > 0.6:
		t.Biome = BiomeJungle
	case precip > 0.5:
		if precip > 0.7 {
			t.Biome = BiomeDenseForest
		} else {
			t.Biome = BiomeForest
		}
	default:
		t.Biome = BiomeGrassland
	}

	profile := landProfiles[t.Biome]
	t.Soil = profile.Soil
	t.VegetationType = profile.VegetationType
	t.Vegetation = round2(profile.Vegetation * (0.5 + 0.5*precip))

	// Forest canopy flips to conifers in cold climates.
	if (t.Biome == BiomeForest || t.Biome == BiomeDenseForest) && temp < 0.4 {
		t.VegetationType = VegConiferous
	}

	if nH < SeaLevel+BeachBand && !t.Cliff {
		t.possibleBeach = true
	}
}

// resolveBeaches turns a shoreline candidate into a beach iff one of its four
// cardinal neighbours inside this chunk is ocean. Cross-chunk detection is
// deliberately not performed.
func (g *Generator) resolveBeaches(c *Chunk) {
	at := func(lx, ly int) *Tile {
		if lx < 0 || lx >= ChunkSize || ly < 0 || ly >= ChunkSize {
			return nil
		}
		return &c.Tiles[ly*ChunkSize+lx]
	}
	isOcean := func(t *Tile) bool {
		return t != nil && (t.Biome == BiomeOceanDeep || t.Biome == BiomeOceanShallow)
	}
	for ly := 0; ly < ChunkSize; ly++ {
		for lx := 0; lx < ChunkSize; lx++ {
			t := at(lx, ly)
			if !t.possibleBeach {
				continue
			}
			t.possibleBeach = false
			if isOcean(at(lx-1, ly)) || isOcean(at(lx+1, ly)) || isOcean(at(lx, ly-1)) || isOcean(at(lx, ly+1)) {
				t.Biome = BiomeBeach
				profile := landProfiles[BiomeBeach]
				t.Soil = profile.Soil
				t.VegetationType = profile.VegetationType
				t.Vegetation = round2(profile.Vegetation * (0.5 + 0.5*t.Precipitation))
				t.Color = biomeColors[BiomeBeach]
			}
		}
	}
}

func tileHasNaN(t *Tile) bool {
	for _, v := range []float64{t.Height, t.NormHeight, t.Temperature, t.Precipitation, t.Steepness} {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
