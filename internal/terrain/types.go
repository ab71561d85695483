package terrain

import "fmt"

// ChunkSize is the edge length of a chunk in tiles. Clients rely on this
// constant on the wire; changing it is a protocol break.
const ChunkSize = 10

// Biome classifies a tile's climate and elevation band.
type Biome int

const (
	BiomeOceanDeep Biome = iota
	BiomeOceanShallow
	BiomeBeach
	BiomeGrassland
	BiomeForest
	BiomeDenseForest
	BiomeJungle
	BiomeSavanna
	BiomeDesert
	BiomeTundra
	BiomeSnow
	BiomeMountain
	BiomeMountainSnow
	BiomeCliff
	BiomeRiver
	BiomeLake
	BiomeSwamp
	BiomeMarsh
)

var biomeNames = map[Biome]string{
	BiomeOceanDeep:    "ocean_deep",
	BiomeOceanShallow: "ocean_shallow",
	BiomeBeach:        "beach",
	BiomeGrassland:    "grassland",
	BiomeForest:       "forest",
	BiomeDenseForest:  "dense_forest",
	BiomeJungle:       "jungle",
	BiomeSavanna:      "savanna",
	BiomeDesert:       "desert",
	BiomeTundra:       "tundra",
	BiomeSnow:         "snow",
	BiomeMountain:     "mountain",
	BiomeMountainSnow: "mountain_snow",
	BiomeCliff:        "cliff",
	BiomeRiver:        "river",
	BiomeLake:         "lake",
	BiomeSwamp:        "swamp",
	BiomeMarsh:        "marsh",
}

func (b Biome) String() string {
	if name, ok := biomeNames[b]; ok {
		return name
	}
	return fmt.Sprintf("biome(%d)", int(b))
}

// WaterType distinguishes kinds of water tiles.
type WaterType int

const (
	WaterNone WaterType = iota
	WaterOcean
	WaterRiver
	WaterLake
)

// Vegetation is the dominant plant cover on a land tile.
type Vegetation int

const (
	VegNone Vegetation = iota
	VegGrasses
	VegShrub
	VegConiferous
	VegDeciduous
	VegTropical
	VegCactus
)

// SoilType is the surface material of a land tile.
type SoilType int

const (
	SoilNone SoilType = iota
	SoilDirt
	SoilSand
	SoilRock
	SoilClay
	SoilPermafrost
)

// ResourceType identifies a minable resource.
type ResourceType string

const (
	ResourceWood  ResourceType = "wood"
	ResourceStone ResourceType = "stone"
	ResourceCoal  ResourceType = "coal"
	ResourceIron  ResourceType = "iron"
	ResourceGold  ResourceType = "gold"
	ResourceWater ResourceType = "water"
)

// ResourceNode is a minable deposit on a tile. Remaining is the single
// mutable field of an otherwise immutable tile.
type ResourceNode struct {
	Type        ResourceType `json:"type"`
	Amount      int          `json:"amount"`
	Remaining   int          `json:"remaining"`
	Hardness    float64      `json:"hardness"`
	X           int          `json:"x"`
	Y           int          `json:"y"`
	RespawnTime int          `json:"respawnTime,omitempty"`
}

// Tile is one fully classified grid cell.
type Tile struct {
	X              int           `json:"x"`
	Y              int           `json:"y"`
	Height         float64       `json:"h"`
	NormHeight     float64       `json:"nH"`
	Water          bool          `json:"w"`
	WaterType      WaterType     `json:"wT,omitempty"`
	Temperature    float64       `json:"t"`
	Precipitation  float64       `json:"p"`
	Steepness      float64       `json:"stp"`
	Biome          Biome         `json:"b"`
	Color          int           `json:"c"`
	Vegetation     float64       `json:"v,omitempty"`
	VegetationType Vegetation    `json:"vT,omitempty"`
	Soil           SoilType      `json:"sT,omitempty"`
	Cliff          bool          `json:"iC,omitempty"`
	Resource       *ResourceNode `json:"r,omitempty"`

	possibleBeach bool
}

// Chunk is a ChunkSize x ChunkSize grid of tiles in row-major order, a pure
// function of (seed, cx, cy). Partial products (row, column, point) reuse the
// struct with CX, CY holding the start coordinate and fewer tiles.
type Chunk struct {
	CX    int    `json:"cx"`
	CY    int    `json:"cy"`
	Tiles []Tile `json:"tiles"`
}

// Key returns the canonical chunk key "cx,cy".
func Key(cx, cy int) string {
	return fmt.Sprintf("%d,%d", cx, cy)
}

// Key returns the chunk's own canonical key.
func (c *Chunk) Key() string {
	return Key(c.CX, c.CY)
}

// TileAt returns the tile with world coordinates (wx, wy), or nil when the
// coordinate falls outside the chunk.
func (c *Chunk) TileAt(wx, wy int) *Tile {
	if len(c.Tiles) == ChunkSize*ChunkSize {
		lx := wx - c.CX*ChunkSize
		ly := wy - c.CY*ChunkSize
		if lx < 0 || lx >= ChunkSize || ly < 0 || ly >= ChunkSize {
			return nil
		}
		return &c.Tiles[ly*ChunkSize+lx]
	}
	for i := range c.Tiles {
		if c.Tiles[i].X == wx && c.Tiles[i].Y == wy {
			return &c.Tiles[i]
		}
	}
	return nil
}

// Resources collects the chunk's resource nodes keyed by "wx,wy".
func (c *Chunk) Resources() map[string]*ResourceNode {
	out := make(map[string]*ResourceNode)
	for i := range c.Tiles {
		if r := c.Tiles[i].Resource; r != nil {
			out[fmt.Sprintf("%d,%d", r.X, r.Y)] = r
		}
	}
	return out
}

// Mode selects what a generation request produces.
type Mode string

const (
	ModeChunk  Mode = "chunk"
	ModeRow    Mode = "row"
	ModeColumn Mode = "column"
	ModePoint  Mode = "point"
)

// ValidMode reports whether m is a recognized generation mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeChunk, ModeRow, ModeColumn, ModePoint:
		return true
	}
	return false
}
