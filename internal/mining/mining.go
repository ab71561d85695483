package mining

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/chunkgame/server/internal/terrain"
)

// ErrNoResource is returned when the target tile has nothing to mine.
var ErrNoResource = errors.New("no resource at target tile")

// ErrChunkNotLoaded is returned when the target chunk was never materialized;
// mining does not generate terrain.
var ErrChunkNotLoaded = errors.New("target chunk not loaded")

// toolEfficiency ranks tools; unknown tools fall back to bare hands.
var toolEfficiency = map[string]float64{
	"hand":    0.2,
	"pickaxe": 0.6,
	"drill":   0.9,
}

const (
	minEfficiency = 0.1
	yieldFraction = 0.1
)

// ChunkAccess is the slice of the chunk pipeline mining needs: read without
// generating, and commit a mutation through the write path.
type ChunkAccess interface {
	Load(ctx context.Context, cx, cy int) (*terrain.Chunk, error)
	CommitMutation(ctx context.Context, c *terrain.Chunk) error
}

// Result reports one successful mining action.
type Result struct {
	Resource  string `json:"resource"`
	Amount    int    `json:"amount"`
	Remaining int    `json:"remaining"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// Service applies mining actions against materialized chunks. Concurrent
// miners on the same node race last-writer-wins through the store.
type Service struct {
	chunks ChunkAccess
}

func NewService(chunks ChunkAccess) *Service {
	return &Service{chunks: chunks}
}

// Mine extracts from the resource node at world tile (x, y). The yield scales
// with tool efficiency against node hardness; a depleted node stays on the
// tile with Remaining zero until respawn handling revives it.
func (s *Service) Mine(ctx context.Context, playerID string, x, y int, tool string) (*Result, error) {
	cx, cy := floorDiv(x, terrain.ChunkSize), floorDiv(y, terrain.ChunkSize)
	c, err := s.chunks.Load(ctx, cx, cy)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk %s: %w", terrain.Key(cx, cy), ErrChunkNotLoaded)
	}

	t := c.TileAt(x, y)
	if t == nil || t.Resource == nil || t.Resource.Remaining <= 0 {
		return nil, ErrNoResource
	}

	eff, ok := toolEfficiency[tool]
	if !ok {
		eff = toolEfficiency["hand"]
	}
	power := math.Max(minEfficiency, eff-t.Resource.Hardness)
	mined := int(math.Floor(float64(t.Resource.Remaining) * power * yieldFraction))
	if mined < 1 {
		mined = 1
	}
	if mined > t.Resource.Remaining {
		mined = t.Resource.Remaining
	}
	t.Resource.Remaining -= mined

	if err := s.chunks.CommitMutation(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to commit mining on chunk %s: %w", c.Key(), err)
	}

	log.Debug("mined resource",
		"player_id", playerID,
		"resource", t.Resource.Type,
		"amount", mined,
		"remaining", t.Resource.Remaining,
		"tile", fmt.Sprintf("%d,%d", x, y))

	return &Result{
		Resource:  string(t.Resource.Type),
		Amount:    mined,
		Remaining: t.Resource.Remaining,
		X:         x,
		Y:         y,
	}, nil
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
