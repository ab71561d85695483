package session

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkgame/server/internal/noise"
	"github.com/chunkgame/server/internal/terrain"
)

func TestClientMessageDecoding(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		hasCoords bool
	}{
		{
			name:      "valid chunk request",
			raw:       `{"type":"requestChunk","x":15,"y":-3}`,
			hasCoords: true,
		},
		{
			name:      "valid request with mode",
			raw:       `{"type":"requestChunk","x":0,"y":0,"mode":"row"}`,
			hasCoords: true,
		},
		{
			name:    "string where number belongs",
			raw:     `{"type":"requestChunk","x":"zero","y":0}`,
			wantErr: true,
		},
		{
			name:      "missing y",
			raw:       `{"type":"requestChunk","x":5}`,
			hasCoords: false,
		},
		{
			name:      "missing both coordinates",
			raw:       `{"type":"handshake"}`,
			hasCoords: false,
		},
		{
			name:      "null coordinate",
			raw:       `{"type":"move","x":null,"y":3}`,
			hasCoords: false,
		},
		{
			name:      "mining with tool",
			raw:       `{"type":"mining","x":12,"y":34,"tool":"pickaxe"}`,
			hasCoords: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg clientMessage
			err := json.Unmarshal([]byte(tt.raw), &msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hasCoords, msg.hasCoords())
		})
	}
}

func TestInvalidRequestMessage(t *testing.T) {
	msg := invalidRequest()
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "Invalid request parameters", msg.Message)
}

func TestGzipRoundTrip(t *testing.T) {
	gen := terrain.NewGenerator(noise.New(12345))
	c := gen.Chunk(1, 2)
	payload := chunkMsg{Type: "chunkData", Chunk: c.Wire(terrain.ModeChunk)}

	plain, err := json.Marshal(payload)
	require.NoError(t, err)
	packed, err := gzipBytes(plain)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain), "chunk payloads should compress")

	zr, err := gzip.NewReader(bytes.NewReader(packed))
	require.NoError(t, err)
	unpacked, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.NoError(t, zr.Close())
	assert.Equal(t, plain, unpacked)

	var decoded chunkMsg
	require.NoError(t, json.Unmarshal(unpacked, &decoded))
	assert.Equal(t, "chunkData", decoded.Type)
	require.NotNil(t, decoded.Chunk)
	assert.Equal(t, 1, decoded.Chunk.X)
	assert.Equal(t, 2, decoded.Chunk.Y)
	assert.Len(t, decoded.Chunk.Tiles, terrain.ChunkSize*terrain.ChunkSize)
}

func TestChunkAddressing(t *testing.T) {
	tests := []struct {
		x, want int
	}{
		{0, 0},
		{9, 0},
		{10, 1},
		{-1, -1},
		{-10, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, floorDiv(tt.x, terrain.ChunkSize), "world x %d", tt.x)
	}
}
