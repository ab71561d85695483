package terrain

// WireChunk is the compact client-facing form of a chunk. Tiles are
// positional arrays; resources are duplicated in a coordinate-keyed map so
// the client can index both ways.
type WireChunk struct {
	X         int                      `json:"x"`
	Y         int                      `json:"y"`
	Tiles     [][]float64              `json:"tiles"`
	Mode      Mode                     `json:"mode"`
	Resources map[string]*ResourceNode `json:"resources"`
}

// Wire converts the chunk into its wire form. Each tile becomes
// [x, y, h, nH, w, t, p, stp, b, c, iC, wT, v, vT, sT] with the float fields
// rounded to two decimals.
func (c *Chunk) Wire(mode Mode) *WireChunk {
	tiles := make([][]float64, len(c.Tiles))
	for i := range c.Tiles {
		t := &c.Tiles[i]
		tiles[i] = []float64{
			float64(t.X),
			float64(t.Y),
			round2(t.Height),
			round2(t.NormHeight),
			boolToFloat(t.Water),
			round2(t.Temperature),
			round2(t.Precipitation),
			round2(t.Steepness),
			float64(t.Biome),
			float64(t.Color),
			boolToFloat(t.Cliff),
			float64(t.WaterType),
			round2(t.Vegetation),
			float64(t.VegetationType),
			float64(t.Soil),
		}
	}
	return &WireChunk{
		X:         c.CX,
		Y:         c.CY,
		Tiles:     tiles,
		Mode:      mode,
		Resources: c.Resources(),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
