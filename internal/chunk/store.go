package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chunkgame/server/internal/terrain"
)

// ErrNotFound marks a chunk absent from a lookup layer. The caller decides
// whether to fall through to the next layer or generate.
var ErrNotFound = errors.New("chunk not found")

// PgxDB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type PgxDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const (
	createChunksTable = `
		CREATE TABLE IF NOT EXISTS chunks (
			x INT NOT NULL,
			y INT NOT NULL,
			tiles JSONB NOT NULL,
			terrain JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (x, y)
		)`
	createChunksIndex = `CREATE INDEX IF NOT EXISTS idx_chunks_xy ON chunks (x, y)`

	selectChunk = `SELECT tiles FROM chunks WHERE x = $1 AND y = $2`
	upsertChunk = `
		INSERT INTO chunks (x, y, tiles, terrain)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (x, y) DO UPDATE SET tiles = EXCLUDED.tiles, terrain = EXCLUDED.terrain`
	truncateChunks = `TRUNCATE TABLE chunks`
)

// Store is the authoritative persistent chunk store.
type Store struct {
	db PgxDB
}

func NewStore(db PgxDB) *Store {
	return &Store{db: db}
}

// Migrate creates the chunks table and its index.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createChunksTable); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	if _, err := s.db.Exec(ctx, createChunksIndex); err != nil {
		return fmt.Errorf("failed to create chunks index: %w", err)
	}
	return nil
}

// Get loads the chunk at (cx, cy), or ErrNotFound.
func (s *Store) Get(ctx context.Context, cx, cy int) (*terrain.Chunk, error) {
	var tilesJSON []byte
	err := s.db.QueryRow(ctx, selectChunk, cx, cy).Scan(&tilesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query chunk (%d,%d): %w", cx, cy, err)
	}

	var tiles []terrain.Tile
	if err := json.Unmarshal(tilesJSON, &tiles); err != nil {
		return nil, fmt.Errorf("failed to deserialize chunk (%d,%d): %w", cx, cy, err)
	}
	return &terrain.Chunk{CX: cx, CY: cy, Tiles: tiles}, nil
}

// Upsert writes the chunk, tolerating concurrent writers on the same key
// (last write wins).
func (s *Store) Upsert(ctx context.Context, c *terrain.Chunk) error {
	tilesJSON, err := json.Marshal(c.Tiles)
	if err != nil {
		return fmt.Errorf("failed to serialize chunk %s: %w", c.Key(), err)
	}
	terrainJSON, err := json.Marshal(biomeGrid(c))
	if err != nil {
		return fmt.Errorf("failed to serialize terrain grid %s: %w", c.Key(), err)
	}
	if _, err := s.db.Exec(ctx, upsertChunk, c.CX, c.CY, tilesJSON, terrainJSON); err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", c.Key(), err)
	}
	return nil
}

// Truncate drops all persisted chunks. Debug-mode boot only.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, truncateChunks); err != nil {
		return fmt.Errorf("failed to truncate chunks: %w", err)
	}
	return nil
}

// Ping reports store reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// biomeGrid is the compact terrain blob stored alongside the full tiles: a
// flat row-major biome index array.
func biomeGrid(c *terrain.Chunk) []int {
	grid := make([]int, len(c.Tiles))
	for i := range c.Tiles {
		grid[i] = int(c.Tiles[i].Biome)
	}
	return grid
}
