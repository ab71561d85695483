package chunk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkgame/server/internal/bus"
	"github.com/chunkgame/server/internal/terrain"
)

type fakeCache struct {
	mu      sync.Mutex
	chunks  map[string]*terrain.Chunk
	getErr  error
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{chunks: make(map[string]*terrain.Chunk)}
}

func (f *fakeCache) Get(ctx context.Context, cx, cy int) (*terrain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if c, ok := f.chunks[terrain.Key(cx, cy)]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (f *fakeCache) Set(ctx context.Context, c *terrain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.chunks[c.Key()] = c
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, cx, cy int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.chunks, terrain.Key(cx, cy))
	return nil
}

func (f *fakeCache) has(cx, cy int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.chunks[terrain.Key(cx, cy)]
	return ok
}

type fakeStore struct {
	mu     sync.Mutex
	chunks map[string]*terrain.Chunk
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{chunks: make(map[string]*terrain.Chunk)}
}

func (f *fakeStore) Get(ctx context.Context, cx, cy int) (*terrain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if c, ok := f.chunks[terrain.Key(cx, cy)]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) Upsert(ctx context.Context, c *terrain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[c.Key()] = c
	return nil
}

func (f *fakeStore) has(cx, cy int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.chunks[terrain.Key(cx, cy)]
	return ok
}

type fakeDispatcher struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, cx, cy int, mode terrain.Mode) (*terrain.Chunk, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &terrain.Chunk{CX: cx, CY: cy, Tiles: make([]terrain.Tile, 1)}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []bus.ChunkInvalidate
}

func (f *fakePublisher) PublishChunkInvalidate(ctx context.Context, inv bus.ChunkInvalidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, inv)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newTestOrchestrator() (*Orchestrator, *fakeCache, *fakeStore, *fakeDispatcher, *fakePublisher) {
	cache := newFakeCache()
	store := newFakeStore()
	disp := &fakeDispatcher{}
	pub := &fakePublisher{}
	return NewOrchestrator(cache, store, disp, pub), cache, store, disp, pub
}

func TestGetCacheHit(t *testing.T) {
	o, cache, _, disp, _ := newTestOrchestrator()
	want := &terrain.Chunk{CX: 1, CY: 2}
	cache.chunks[want.Key()] = want

	got, err := o.Get(context.Background(), 1, 2, terrain.ModeChunk)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Zero(t, disp.calls.Load())
}

func TestGetStoreHitRefillsCache(t *testing.T) {
	o, cache, store, disp, _ := newTestOrchestrator()
	want := &terrain.Chunk{CX: 1, CY: 2}
	store.chunks[want.Key()] = want

	got, err := o.Get(context.Background(), 1, 2, terrain.ModeChunk)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Zero(t, disp.calls.Load())
	assert.True(t, cache.has(1, 2), "store hit must refill the cache")
}

func TestGetGeneratesAndPersists(t *testing.T) {
	o, cache, store, disp, pub := newTestOrchestrator()

	got, err := o.Get(context.Background(), 5, 6, terrain.ModeChunk)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CX)
	assert.Equal(t, int64(1), disp.calls.Load())

	assert.True(t, store.has(5, 6), "generated chunk must be persisted")
	assert.False(t, cache.has(5, 6), "write path deletes, never repopulates, the cache")
	assert.Equal(t, 1, pub.count(), "generation publishes an invalidation")
}

func TestGetConcurrentDedup(t *testing.T) {
	o, _, _, disp, _ := newTestOrchestrator()
	disp.delay = 50 * time.Millisecond

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*terrain.Chunk, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := o.Get(context.Background(), 7, 7, terrain.ModeChunk)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), disp.calls.Load(), "concurrent callers share one generation")
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestGetPartialModeBypassesCacheAndStore(t *testing.T) {
	o, cache, store, disp, pub := newTestOrchestrator()

	_, err := o.Get(context.Background(), 30, 40, terrain.ModeRow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), disp.calls.Load())
	assert.Empty(t, cache.chunks)
	assert.Empty(t, store.chunks)
	assert.Zero(t, pub.count())
}

func TestGetCacheErrorDegradesToMiss(t *testing.T) {
	o, cache, store, _, _ := newTestOrchestrator()
	cache.getErr = errors.New("cache down")
	want := &terrain.Chunk{CX: 1, CY: 1}
	store.chunks[want.Key()] = want

	got, err := o.Get(context.Background(), 1, 1, terrain.ModeChunk)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestGetDispatchError(t *testing.T) {
	o, _, _, disp, _ := newTestOrchestrator()
	disp.err = ErrTimeout

	_, err := o.Get(context.Background(), 2, 2, terrain.ModeChunk)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLoadDoesNotGenerate(t *testing.T) {
	o, _, store, disp, _ := newTestOrchestrator()
	want := &terrain.Chunk{CX: 0, CY: 0}
	store.chunks[want.Key()] = want

	got, err := o.Load(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Same(t, want, got)

	_, err = o.Load(context.Background(), 9, 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, disp.calls.Load())
}

func TestCommitMutationInvalidates(t *testing.T) {
	o, cache, store, _, pub := newTestOrchestrator()
	c := &terrain.Chunk{CX: 3, CY: 3}
	cache.chunks[c.Key()] = c

	require.NoError(t, o.CommitMutation(context.Background(), c))
	assert.True(t, store.has(3, 3))
	assert.False(t, cache.has(3, 3))
	require.Equal(t, 1, pub.count())
	assert.Equal(t, bus.ChunkInvalidate{CX: 3, CY: 3}, pub.events[0])
}
