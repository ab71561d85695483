package terrain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireChunkShape(t *testing.T) {
	c := testGenerator(12345).Chunk(2, -1)
	w := c.Wire(ModeChunk)

	assert.Equal(t, c.CX, w.X)
	assert.Equal(t, c.CY, w.Y)
	assert.Equal(t, ModeChunk, w.Mode)
	require.Len(t, w.Tiles, len(c.Tiles))

	for i, row := range w.Tiles {
		require.Len(t, row, 15, "tile %d", i)
		tile := &c.Tiles[i]
		assert.Equal(t, float64(tile.X), row[0])
		assert.Equal(t, float64(tile.Y), row[1])
		assert.Equal(t, float64(tile.Biome), row[8])
		assert.Equal(t, float64(tile.Color), row[9])
		if tile.Water {
			assert.Equal(t, 1.0, row[4])
		} else {
			assert.Equal(t, 0.0, row[4])
		}

		// Float fields are rounded to two decimals.
		for _, idx := range []int{2, 3, 5, 6, 7, 12} {
			v := row[idx]
			assert.Equal(t, math.Round(v*100)/100, v, "tile %d field %d not rounded", i, idx)
		}
	}
}

func TestWireChunkResources(t *testing.T) {
	c := testGenerator(12345).Chunk(0, 0)
	w := c.Wire(ModeChunk)

	assert.Equal(t, len(c.Resources()), len(w.Resources))
	for key, node := range w.Resources {
		assert.Equal(t, Key(node.X, node.Y), key)
	}
}

func TestWireChunkJSON(t *testing.T) {
	c := testGenerator(7).Chunk(1, 1)
	data, err := json.Marshal(c.Wire(ModeChunk))
	require.NoError(t, err)

	var decoded WireChunk
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c.CX, decoded.X)
	assert.Equal(t, c.CY, decoded.Y)
	assert.Equal(t, ModeChunk, decoded.Mode)
	assert.Len(t, decoded.Tiles, ChunkSize*ChunkSize)
}

func TestWirePartialMode(t *testing.T) {
	g := testGenerator(7)
	span := g.Span(30, 40, ModeRow)
	w := span.Wire(ModeRow)
	assert.Equal(t, ModeRow, w.Mode)
	assert.Len(t, w.Tiles, ChunkSize)
}
