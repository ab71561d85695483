package terrain

import "math"

// placeResources runs the deterministic resource pass over a finished chunk.
// Forced placements (lake/river water, forest stock) happen on every eligible
// tile; density placements are capped per chunk.
func (g *Generator) placeResources(c *Chunk) {
	seed := g.noise.Seed()

	// Forced placements first, and the density budget in the same pass.
	var densitySum float64
	var densityTiles int
	for i := range c.Tiles {
		t := &c.Tiles[i]
		g.placeForcedResource(t)
		if t.Resource == nil && tileEligible(t) {
			if entry, ok := resourceTable[t.Biome]; ok && !entry.Always && entry.Density > 0 {
				densitySum += entry.Density
				densityTiles++
			}
		}
	}

	if densityTiles == 0 {
		return
	}
	avgDensity := densitySum / float64(densityTiles)
	limit := int(avgDensity * MaxPlacementMultiplier)
	if limit < MinRandomPlacements {
		limit = MinRandomPlacements
	}

	placed := 0
	for i := range c.Tiles {
		if placed >= limit {
			break
		}
		t := &c.Tiles[i]
		if t.Resource != nil || !tileEligible(t) {
			continue
		}
		entry, ok := resourceTable[t.Biome]
		if !ok || entry.Always || entry.Density <= 0 {
			continue
		}
		r := newCellRand(seed, t.X, t.Y)
		if r.Float64() >= entry.Density {
			continue
		}
		t.Resource = rollResource(t, r, entry)
		placed++
	}
}

// placeForcedResource handles the placements that ignore the density budget:
// lake and river tiles always carry water, forest tiles always carry stock
// from their probability table.
func (g *Generator) placeForcedResource(t *Tile) {
	if t.Resource != nil {
		return
	}
	seed := g.noise.Seed()
	switch {
	case t.Water && (t.Biome == BiomeLake || t.Biome == BiomeRiver):
		r := newCellRand(seed, t.X, t.Y)
		amountRange := ResourceAmountRange[ResourceWater]
		hardnessRange := ResourceHardnessRange[ResourceWater]
		t.Resource = &ResourceNode{
			Type:     ResourceWater,
			Amount:   r.IntRange(amountRange[0], amountRange[1]),
			Hardness: roundHardness(r.FloatRange(hardnessRange[0], hardnessRange[1])),
			X:        t.X,
			Y:        t.Y,
		}
		t.Resource.Remaining = t.Resource.Amount
	case isForestBiome(t.Biome) && tileEligible(t):
		r := newCellRand(seed, t.X, t.Y)
		t.Resource = rollResource(t, r, resourceTable[t.Biome])
	}
}

// tileEligible reports whether a tile may receive a non-water resource:
// land, not a cliff, not steep.
func tileEligible(t *Tile) bool {
	return !t.Water && !t.Cliff && t.Steepness <= SteepCutoff
}

// rollResource draws a node from the biome probability table using the
// tile's deterministic stream.
func rollResource(t *Tile, r *cellRand, entry biomeResources) *ResourceNode {
	rt := drawType(r, entry.Types)

	amountRange := ResourceAmountRange[rt]
	amount := r.IntRange(amountRange[0], amountRange[1])
	if entry.Multiplier > 0 {
		amount = int(math.Floor(float64(amount) * entry.Multiplier))
	}

	hardnessRange := ResourceHardnessRange[rt]
	hardness := r.FloatRange(hardnessRange[0], hardnessRange[1])
	if t.Steepness > SteepHardnessCutoff {
		hardness += SteepHardnessDifficulty
	}

	node := &ResourceNode{
		Type:      rt,
		Amount:    amount,
		Remaining: amount,
		Hardness:  roundHardness(hardness),
		X:         t.X,
		Y:         t.Y,
	}
	if respawn, ok := ResourceRespawnRange[rt]; ok {
		node.RespawnTime = r.IntRange(respawn[0], respawn[1])
	}
	return node
}

func drawType(r *cellRand, types []resourceChance) ResourceType {
	var total float64
	for _, rc := range types {
		total += rc.Weight
	}
	draw := r.Float64() * total
	for _, rc := range types {
		draw -= rc.Weight
		if draw < 0 {
			return rc.Type
		}
	}
	return types[len(types)-1].Type
}

func roundHardness(h float64) float64 {
	return math.Round(h*100) / 100
}
