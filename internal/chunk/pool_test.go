package chunk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkgame/server/internal/noise"
	"github.com/chunkgame/server/internal/terrain"
)

func testPool(t *testing.T, size int) *Pool {
	t.Helper()
	gen := terrain.NewGenerator(noise.New(12345))
	p := newPool(gen, size, time.Second, time.Hour)
	t.Cleanup(p.Close)
	return p
}

func TestDispatchGeneratesChunk(t *testing.T) {
	p := testPool(t, 2)

	c, err := p.Dispatch(context.Background(), 3, -2, terrain.ModeChunk)
	require.NoError(t, err)
	assert.Equal(t, 3, c.CX)
	assert.Equal(t, -2, c.CY)
	assert.Len(t, c.Tiles, terrain.ChunkSize*terrain.ChunkSize)

	// Load returns to zero once the reply is routed.
	assert.Eventually(t, func() bool {
		for _, load := range p.WorkerLoads() {
			if load != 0 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchPartialModes(t *testing.T) {
	p := testPool(t, 1)

	tests := []struct {
		mode  terrain.Mode
		count int
	}{
		{terrain.ModeRow, terrain.ChunkSize},
		{terrain.ModeColumn, terrain.ChunkSize},
		{terrain.ModePoint, 1},
	}
	for _, tt := range tests {
		c, err := p.Dispatch(context.Background(), 15, 25, tt.mode)
		require.NoError(t, err)
		assert.Len(t, c.Tiles, tt.count, "mode %s", tt.mode)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	p := testPool(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Dispatch(ctx, 0, 0, terrain.ModeChunk)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatchClosedPool(t *testing.T) {
	gen := terrain.NewGenerator(noise.New(1))
	p := newPool(gen, 1, time.Second, time.Hour)
	p.Close()

	// A closed pool fails fast once its worker queue fills.
	for i := 0; i < workerQueueSize+1; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := p.Dispatch(ctx, i, i, terrain.ModeChunk)
		cancel()
		if err != nil && err != context.DeadlineExceeded {
			assert.EqualError(t, err, "worker pool closed")
			return
		}
	}
}

func TestLeastLoadedDispatch(t *testing.T) {
	p := &Pool{
		workers: []*worker{
			{id: 0, load: 3},
			{id: 1, load: 1},
			{id: 2, load: 2},
		},
	}
	assert.Equal(t, 1, p.leastLoaded().id)

	p.workers[1].load = 5
	assert.Equal(t, 2, p.leastLoaded().id)
}

func TestSweepTimesOutStaleRequests(t *testing.T) {
	w := &worker{id: 0, load: 2}
	stale := &pendingRequest{
		ch:     make(chan result, 1),
		start:  time.Now().Add(-16 * time.Second),
		worker: w,
	}
	fresh := &pendingRequest{
		ch:     make(chan result, 1),
		start:  time.Now(),
		worker: w,
	}
	p := &Pool{
		pending: map[uint64]*pendingRequest{1: stale, 2: fresh},
		timeout: requestTimeout,
	}

	p.sweepOnce(time.Now())

	require.Len(t, p.pending, 1)
	assert.Contains(t, p.pending, uint64(2))
	assert.Equal(t, 1, w.load, "expired request must release its worker slot")

	select {
	case res := <-stale.ch:
		assert.ErrorIs(t, res.err, ErrTimeout)
	default:
		t.Fatal("expired request did not receive a timeout result")
	}
	select {
	case <-fresh.ch:
		t.Fatal("fresh request must not be swept")
	default:
	}
}

func TestWorkerCacheReuse(t *testing.T) {
	p := testPool(t, 1)

	first, err := p.Dispatch(context.Background(), 1, 1, terrain.ModeChunk)
	require.NoError(t, err)
	second, err := p.Dispatch(context.Background(), 1, 1, terrain.ModeChunk)
	require.NoError(t, err)
	assert.Same(t, first, second, "single worker serves repeat requests from its LRU")
}

func TestInvalidatePurgesWorkerCaches(t *testing.T) {
	p := testPool(t, 2)

	_, err := p.Dispatch(context.Background(), 4, 4, terrain.ModeChunk)
	require.NoError(t, err)
	// A row starting inside chunk (4,4) overlaps it too.
	_, err = p.Dispatch(context.Background(), 4*terrain.ChunkSize, 4*terrain.ChunkSize, terrain.ModeRow)
	require.NoError(t, err)
	_, err = p.Dispatch(context.Background(), 7, 7, terrain.ModeChunk)
	require.NoError(t, err)

	p.Invalidate(4, 4)

	for _, w := range p.workers {
		for _, key := range w.cache.Keys() {
			v, ok := w.cache.Peek(key)
			require.True(t, ok)
			assert.False(t, chunkOverlaps(v.(*terrain.Chunk), 4, 4),
				"entry %v overlapping invalidated chunk survived", key)
		}
	}

	// The unrelated chunk stays cached.
	found := false
	for _, w := range p.workers {
		if _, ok := w.cache.Peek(terrain.Key(7, 7)); ok {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, n, want int
	}{
		{0, 10, 0},
		{9, 10, 0},
		{10, 10, 1},
		{-1, 10, -1},
		{-10, 10, -1},
		{-11, 10, -2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, floorDiv(tt.a, tt.n), "floorDiv(%d, %d)", tt.a, tt.n)
	}
}
