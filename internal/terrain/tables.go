package terrain

// Classification thresholds. SeaLevel is in normalized height space.
const (
	SeaLevel       = 0.4
	OceanDeepDepth = 0.15
	BeachBand      = 0.05
	CliffSteepness = 0.7
	MountainHeight = 0.75

	// RiverThreshold is the river-map intensity above which a land cell
	// becomes a river channel. LakeThreshold gates shallow water into lakes.
	RiverThreshold = 0.96
	LakeThreshold  = 0.62

	// Resource placement limits.
	SteepCutoff             = 0.8
	SteepHardnessCutoff     = 0.6
	SteepHardnessDifficulty = 0.2
	MinRandomPlacements     = 3
	MaxPlacementMultiplier  = 20
)

// biomeColors maps each biome to its client palette index.
var biomeColors = map[Biome]int{
	BiomeOceanDeep:    0,
	BiomeOceanShallow: 1,
	BiomeBeach:        2,
	BiomeGrassland:    3,
	BiomeForest:       4,
	BiomeDenseForest:  5,
	BiomeJungle:       6,
	BiomeSavanna:      7,
	BiomeDesert:       8,
	BiomeTundra:       9,
	BiomeSnow:         10,
	BiomeMountain:     11,
	BiomeMountainSnow: 12,
	BiomeCliff:        13,
	BiomeRiver:        14,
	BiomeLake:         15,
	BiomeSwamp:        16,
	BiomeMarsh:        17,
}

// landProfile carries the per-biome land fields the classifier fills in.
type landProfile struct {
	Vegetation     float64
	VegetationType Vegetation
	Soil           SoilType
}

var landProfiles = map[Biome]landProfile{
	BiomeBeach:        {0.05, VegGrasses, SoilSand},
	BiomeGrassland:    {0.4, VegGrasses, SoilDirt},
	BiomeForest:       {0.7, VegDeciduous, SoilDirt},
	BiomeDenseForest:  {0.9, VegDeciduous, SoilDirt},
	BiomeJungle:       {0.95, VegTropical, SoilDirt},
	BiomeSavanna:      {0.3, VegGrasses, SoilDirt},
	BiomeDesert:       {0.05, VegCactus, SoilSand},
	BiomeTundra:       {0.15, VegShrub, SoilPermafrost},
	BiomeSnow:         {0.05, VegNone, SoilPermafrost},
	BiomeMountain:     {0.1, VegShrub, SoilRock},
	BiomeMountainSnow: {0.02, VegNone, SoilRock},
	BiomeCliff:        {0.1, VegShrub, SoilRock},
	BiomeSwamp:        {0.6, VegShrub, SoilClay},
	BiomeMarsh:        {0.5, VegGrasses, SoilClay},
}

// resourceChance is one weighted entry in a biome's probability table.
type resourceChance struct {
	Type   ResourceType
	Weight float64
}

// biomeResources drives placement: Always biomes roll a resource on every
// eligible tile, the rest roll with probability Density. Multiplier scales
// the drawn amount.
type biomeResources struct {
	Density    float64
	Always     bool
	Multiplier float64
	Types      []resourceChance
}

var resourceTable = map[Biome]biomeResources{
	BiomeForest: {Always: true, Multiplier: 1.0, Types: []resourceChance{
		{ResourceWood, 0.7}, {ResourceCoal, 0.2}, {ResourceIron, 0.1},
	}},
	BiomeDenseForest: {Always: true, Multiplier: 1.2, Types: []resourceChance{
		{ResourceWood, 0.8}, {ResourceCoal, 0.1}, {ResourceIron, 0.1},
	}},
	BiomeJungle: {Always: true, Multiplier: 1.1, Types: []resourceChance{
		{ResourceWood, 0.75}, {ResourceCoal, 0.15}, {ResourceIron, 0.1},
	}},
	BiomeGrassland: {Density: 0.05, Multiplier: 1.0, Types: []resourceChance{
		{ResourceWood, 0.5}, {ResourceStone, 0.3}, {ResourceCoal, 0.2},
	}},
	BiomeSavanna: {Density: 0.04, Multiplier: 1.0, Types: []resourceChance{
		{ResourceWood, 0.4}, {ResourceStone, 0.4}, {ResourceCoal, 0.2},
	}},
	BiomeDesert: {Density: 0.03, Multiplier: 1.2, Types: []resourceChance{
		{ResourceStone, 0.6}, {ResourceCoal, 0.2}, {ResourceGold, 0.2},
	}},
	BiomeTundra: {Density: 0.03, Multiplier: 0.8, Types: []resourceChance{
		{ResourceStone, 0.7}, {ResourceCoal, 0.3},
	}},
	BiomeSnow: {Density: 0.02, Multiplier: 0.8, Types: []resourceChance{
		{ResourceStone, 0.7}, {ResourceCoal, 0.3},
	}},
	BiomeMountain: {Density: 0.1, Multiplier: 1.5, Types: []resourceChance{
		{ResourceStone, 0.4}, {ResourceIron, 0.3}, {ResourceCoal, 0.2}, {ResourceGold, 0.1},
	}},
	BiomeMountainSnow: {Density: 0.08, Multiplier: 1.5, Types: []resourceChance{
		{ResourceStone, 0.5}, {ResourceIron, 0.3}, {ResourceGold, 0.2},
	}},
	BiomeBeach: {Density: 0.02, Multiplier: 1.0, Types: []resourceChance{
		{ResourceStone, 1.0},
	}},
	BiomeSwamp: {Density: 0.03, Multiplier: 1.0, Types: []resourceChance{
		{ResourceWood, 0.8}, {ResourceCoal, 0.2},
	}},
	BiomeMarsh: {Density: 0.02, Multiplier: 1.0, Types: []resourceChance{
		{ResourceWood, 1.0},
	}},
}

// ResourceAmountRange is the uniform draw range for a node's amount, before
// the biome multiplier.
var ResourceAmountRange = map[ResourceType][2]int{
	ResourceWood:  {50, 150},
	ResourceStone: {80, 200},
	ResourceCoal:  {60, 160},
	ResourceIron:  {40, 120},
	ResourceGold:  {20, 60},
	ResourceWater: {1000, 5000},
}

// ResourceHardnessRange is the uniform draw range for a node's hardness.
var ResourceHardnessRange = map[ResourceType][2]float64{
	ResourceWood:  {0.1, 0.3},
	ResourceStone: {0.3, 0.5},
	ResourceCoal:  {0.3, 0.6},
	ResourceIron:  {0.5, 0.8},
	ResourceGold:  {0.6, 0.9},
	ResourceWater: {0.0, 0.1},
}

// ResourceRespawnRange is the uniform draw range for a node's respawn time in
// seconds. Water nodes never respawn and have no entry.
var ResourceRespawnRange = map[ResourceType][2]int{
	ResourceWood:  {300, 600},
	ResourceStone: {600, 1200},
	ResourceCoal:  {900, 1800},
	ResourceIron:  {1200, 2400},
	ResourceGold:  {1800, 3600},
}

// resourceWhitelist maps each resource type to the biomes it may appear in,
// derived from the placement tables.
var resourceWhitelist = func() map[ResourceType]map[Biome]bool {
	wl := make(map[ResourceType]map[Biome]bool)
	add := func(rt ResourceType, b Biome) {
		if wl[rt] == nil {
			wl[rt] = make(map[Biome]bool)
		}
		wl[rt][b] = true
	}
	for b, entry := range resourceTable {
		for _, rc := range entry.Types {
			add(rc.Type, b)
		}
	}
	add(ResourceWater, BiomeRiver)
	add(ResourceWater, BiomeLake)
	return wl
}()

// ResourceAllowedIn reports whether a resource type belongs to a biome's
// whitelist.
func ResourceAllowedIn(rt ResourceType, b Biome) bool {
	return resourceWhitelist[rt][b]
}

func isForestBiome(b Biome) bool {
	return b == BiomeForest || b == BiomeDenseForest || b == BiomeJungle
}
