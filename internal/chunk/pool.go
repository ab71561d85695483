package chunk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru"

	"github.com/chunkgame/server/internal/terrain"
)

// ErrTimeout is returned when a generation request outlives its deadline.
var ErrTimeout = errors.New("chunk generation timeout")

const (
	// DefaultPoolSize is the worker count when WORKER_POOL_SIZE is unset.
	DefaultPoolSize = 8

	workerCacheSize = 100
	workerQueueSize = 64

	requestTimeout = 15 * time.Second
	sweepInterval  = 5 * time.Second
)

// Job is the request sent to a worker.
type Job struct {
	CX        int
	CY        int
	Mode      terrain.Mode
	RequestID uint64
}

type result struct {
	requestID uint64
	chunk     *terrain.Chunk
	err       error
}

// worker is one long-lived CPU-bound generator with its own small LRU. Its
// load counter is owned by the pool's dispatching side, never by the worker.
type worker struct {
	id    int
	jobs  chan Job
	cache *lru.Cache
	load  int
}

// pendingRequest tracks an outstanding dispatch until its reply or its sweep.
type pendingRequest struct {
	ch     chan result
	start  time.Time
	worker *worker
}

// Pool is a fixed set of long-lived generator workers with load-balanced
// dispatch, per-request rendezvous and a timeout sweeper.
type Pool struct {
	gen     *terrain.Generator
	workers []*worker
	results chan result
	done    chan struct{}
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*pendingRequest

	timeout time.Duration
	sweep   time.Duration
}

// NewPool starts size workers plus the reply router and the timeout sweeper.
func NewPool(gen *terrain.Generator, size int) *Pool {
	return newPool(gen, size, requestTimeout, sweepInterval)
}

func newPool(gen *terrain.Generator, size int, timeout, sweep time.Duration) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{
		gen:     gen,
		results: make(chan result, size*2),
		done:    make(chan struct{}),
		pending: make(map[uint64]*pendingRequest),
		timeout: timeout,
		sweep:   sweep,
	}
	for i := 0; i < size; i++ {
		cache, err := lru.New(workerCacheSize)
		if err != nil {
			// lru.New only fails on a non-positive size.
			panic(err)
		}
		w := &worker{id: i, jobs: make(chan Job, workerQueueSize), cache: cache}
		p.workers = append(p.workers, w)
		go p.runWorker(w)
	}
	go p.router()
	go p.sweeper()
	log.Debug("chunk worker pool started", "workers", size)
	return p
}

// Close stops the workers, the router and the sweeper.
func (p *Pool) Close() {
	close(p.done)
}

// Dispatch hands a job to the least-loaded worker and waits for its reply.
// A cancelled context abandons the wait; the eventual result is discarded by
// the router.
func (p *Pool) Dispatch(ctx context.Context, cx, cy int, mode terrain.Mode) (*terrain.Chunk, error) {
	id := p.nextID.Add(1)
	ch := make(chan result, 1)

	p.mu.Lock()
	w := p.leastLoaded()
	w.load++
	p.pending[id] = &pendingRequest{ch: ch, start: time.Now(), worker: w}
	p.mu.Unlock()

	select {
	case w.jobs <- Job{CX: cx, CY: cy, Mode: mode, RequestID: id}:
	case <-ctx.Done():
		p.abandon(id)
		return nil, ctx.Err()
	case <-p.done:
		p.abandon(id)
		return nil, errors.New("worker pool closed")
	}

	select {
	case res := <-ch:
		return res.chunk, res.err
	case <-ctx.Done():
		// The worker keeps running; the sweeper or the router will
		// settle the pending entry and the result is discarded.
		return nil, ctx.Err()
	}
}

// Invalidate purges every worker-local cache entry overlapping chunk (cx, cy).
func (p *Pool) Invalidate(cx, cy int) {
	for _, w := range p.workers {
		for _, key := range w.cache.Keys() {
			v, ok := w.cache.Peek(key)
			if !ok {
				continue
			}
			if chunkOverlaps(v.(*terrain.Chunk), cx, cy) {
				w.cache.Remove(key)
			}
		}
	}
}

// WorkerLoads snapshots the outstanding-job counters, dispatch order.
func (p *Pool) WorkerLoads() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	loads := make([]int, len(p.workers))
	for i, w := range p.workers {
		loads[i] = w.load
	}
	return loads
}

func (p *Pool) leastLoaded() *worker {
	best := p.workers[0]
	for _, w := range p.workers[1:] {
		if w.load < best.load {
			best = w
		}
	}
	return best
}

func (p *Pool) abandon(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pd, ok := p.pending[id]; ok {
		delete(p.pending, id)
		pd.worker.load--
	}
}

func (p *Pool) runWorker(w *worker) {
	for {
		select {
		case <-p.done:
			return
		case job := <-w.jobs:
			res := result{requestID: job.RequestID, chunk: p.execute(w, job)}
			select {
			case p.results <- res:
			case <-p.done:
				return
			}
		}
	}
}

// execute serves a job from the worker-local LRU or generates it. Full
// chunks and partial products are cached under distinct keys; only full
// chunks ever reach the shared cache layer upstream.
func (p *Pool) execute(w *worker, job Job) *terrain.Chunk {
	key := terrain.Key(job.CX, job.CY)
	if job.Mode != terrain.ModeChunk {
		key = fmt.Sprintf("%s:%d,%d", job.Mode, job.CX, job.CY)
	}
	if v, ok := w.cache.Get(key); ok {
		return v.(*terrain.Chunk)
	}

	var c *terrain.Chunk
	if job.Mode == terrain.ModeChunk {
		c = p.gen.Chunk(job.CX, job.CY)
	} else {
		c = p.gen.Span(job.CX, job.CY, job.Mode)
	}
	w.cache.Add(key, c)
	return c
}

// router matches worker replies with pending requests and settles the
// worker's load counter.
func (p *Pool) router() {
	for {
		select {
		case <-p.done:
			return
		case res := <-p.results:
			p.mu.Lock()
			pd, ok := p.pending[res.requestID]
			if ok {
				delete(p.pending, res.requestID)
				pd.worker.load--
			}
			p.mu.Unlock()
			if ok {
				pd.ch <- res
			}
		}
	}
}

// sweeper bounds the damage of a stuck worker: entries past the request
// deadline fail with ErrTimeout and release their worker's load.
func (p *Pool) sweeper() {
	ticker := time.NewTicker(p.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			p.sweepOnce(now)
		}
	}
}

func (p *Pool) sweepOnce(now time.Time) {
	p.mu.Lock()
	var expired []*pendingRequest
	for id, pd := range p.pending {
		if now.Sub(pd.start) > p.timeout {
			delete(p.pending, id)
			pd.worker.load--
			expired = append(expired, pd)
		}
	}
	p.mu.Unlock()

	for _, pd := range expired {
		log.Warn("chunk generation timed out", "worker", pd.worker.id, "age", now.Sub(pd.start))
		pd.ch <- result{err: ErrTimeout}
	}
}

// chunkOverlaps reports whether any tile of c falls inside chunk (cx, cy).
func chunkOverlaps(c *terrain.Chunk, cx, cy int) bool {
	for i := range c.Tiles {
		t := &c.Tiles[i]
		if floorDiv(t.X, terrain.ChunkSize) == cx && floorDiv(t.Y, terrain.ChunkSize) == cy {
			return true
		}
	}
	return false
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
