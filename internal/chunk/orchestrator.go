package chunk

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/chunkgame/server/internal/bus"
	"github.com/chunkgame/server/internal/terrain"
)

// The orchestrator depends on narrow seams so tests can fake each layer.
type chunkCache interface {
	Get(ctx context.Context, cx, cy int) (*terrain.Chunk, error)
	Set(ctx context.Context, chunk *terrain.Chunk) error
	Delete(ctx context.Context, cx, cy int) error
}

type chunkStore interface {
	Get(ctx context.Context, cx, cy int) (*terrain.Chunk, error)
	Upsert(ctx context.Context, chunk *terrain.Chunk) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, cx, cy int, mode terrain.Mode) (*terrain.Chunk, error)
}

type invalidationPublisher interface {
	PublishChunkInvalidate(ctx context.Context, inv bus.ChunkInvalidate) error
}

// Orchestrator sequences the chunk fulfillment pipeline: in-flight dedup,
// cache, store, then worker dispatch, with a hard per-request deadline.
type Orchestrator struct {
	cache   chunkCache
	store   chunkStore
	pool    dispatcher
	bus     invalidationPublisher
	flight  singleflight.Group
	timeout time.Duration
}

func NewOrchestrator(cache chunkCache, store chunkStore, pool dispatcher, publisher invalidationPublisher) *Orchestrator {
	return &Orchestrator{
		cache:   cache,
		store:   store,
		pool:    pool,
		bus:     publisher,
		timeout: requestTimeout,
	}
}

// Get returns the requested product. Full chunks go through dedup, cache and
// store; partial modes go straight to the pool where only the worker-local
// LRU applies.
func (o *Orchestrator) Get(ctx context.Context, cx, cy int, mode terrain.Mode) (*terrain.Chunk, error) {
	if mode != terrain.ModeChunk {
		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return o.pool.Dispatch(ctx, cx, cy, mode)
	}

	// Concurrent callers for the same key observe exactly one generation.
	// The shared call runs on its own deadline so one caller's disconnect
	// does not fail the rest; the abandoning caller just stops waiting.
	v, err, _ := o.flight.Do(terrain.Key(cx, cy), func() (any, error) {
		return o.fulfill(cx, cy)
	})
	if err != nil {
		return nil, err
	}
	return v.(*terrain.Chunk), nil
}

func (o *Orchestrator) fulfill(cx, cy int) (*terrain.Chunk, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	if c, err := o.cache.Get(ctx, cx, cy); err == nil {
		return c, nil
	} else if !errors.Is(err, ErrNotFound) {
		// A down cache degrades to a miss, never to a failed request.
		log.Warn("chunk cache unavailable", "chunk", terrain.Key(cx, cy), "error", err)
	}

	if c, err := o.store.Get(ctx, cx, cy); err == nil {
		if err := o.cache.Set(ctx, c); err != nil {
			log.Warn("failed to refill chunk cache", "chunk", c.Key(), "error", err)
		}
		return c, nil
	} else if !errors.Is(err, ErrNotFound) {
		log.Warn("chunk store unavailable, generating", "chunk", terrain.Key(cx, cy), "error", err)
	}

	c, err := o.pool.Dispatch(ctx, cx, cy, terrain.ModeChunk)
	if err != nil {
		return nil, err
	}
	if err := o.CommitMutation(ctx, c); err != nil {
		// The chunk is still served; the next request regenerates it.
		log.Error("failed to persist generated chunk", "chunk", c.Key(), "error", err)
	}
	return c, nil
}

// Load reads through cache then store without generating. Mining uses this
// to refuse work on chunks nobody has materialized.
func (o *Orchestrator) Load(ctx context.Context, cx, cy int) (*terrain.Chunk, error) {
	if c, err := o.cache.Get(ctx, cx, cy); err == nil {
		return c, nil
	} else if !errors.Is(err, ErrNotFound) {
		log.Warn("chunk cache unavailable", "chunk", terrain.Key(cx, cy), "error", err)
	}
	return o.store.Get(ctx, cx, cy)
}

// CommitMutation runs the write path for a mutated chunk: store upsert,
// cache delete, invalidation broadcast. Deletion rather than repopulation is
// the race-prevention discipline; readers rebuild from the store.
func (o *Orchestrator) CommitMutation(ctx context.Context, c *terrain.Chunk) error {
	if err := o.store.Upsert(ctx, c); err != nil {
		return err
	}
	if err := o.cache.Delete(ctx, c.CX, c.CY); err != nil {
		log.Warn("failed to evict chunk cache", "chunk", c.Key(), "error", err)
	}
	if err := o.bus.PublishChunkInvalidate(ctx, bus.ChunkInvalidate{CX: c.CX, CY: c.CY}); err != nil {
		log.Warn("failed to broadcast chunk invalidation", "chunk", c.Key(), "error", err)
	}
	return nil
}
