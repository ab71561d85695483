package session

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/chunkgame/server/internal/bus"
	"github.com/chunkgame/server/internal/mining"
	"github.com/chunkgame/server/internal/player"
	"github.com/chunkgame/server/internal/terrain"
)

const requestDeadline = 15 * time.Second

// ChunkProvider is the fulfillment pipeline seen from the session layer.
type ChunkProvider interface {
	Get(ctx context.Context, cx, cy int, mode terrain.Mode) (*terrain.Chunk, error)
}

// Miner applies mining actions.
type Miner interface {
	Mine(ctx context.Context, playerID string, x, y int, tool string) (*mining.Result, error)
}

// LocalInvalidator purges node-local chunk copies on invalidation events.
type LocalInvalidator interface {
	Invalidate(cx, cy int)
}

// Hub owns every local session and fans bus events out to them.
type Hub struct {
	registry *player.Registry
	bus      *bus.Bus
	chunks   ChunkProvider
	miner    Miner
	local    LocalInvalidator
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

func NewHub(registry *player.Registry, b *bus.Bus, chunks ChunkProvider, miner Miner, local LocalInvalidator) *Hub {
	return &Hub{
		registry: registry,
		bus:      b,
		chunks:   chunks,
		miner:    miner,
		local:    local,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
		sessions: make(map[*Session]struct{}),
	}
}

// ServeWS upgrades the connection and runs the session open sequence.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := newSession(h, conn, player.NewID())
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
	defer cancel()
	if err := h.registry.Set(ctx, s.id, player.Position{}); err != nil {
		log.Error("failed to register player", "player_id", s.id, "error", err)
	}
	h.bus.PublishPlayerUpdate(ctx, bus.PlayerUpdate{PlayerID: s.id})

	go s.writePump()
	go s.readPump()

	players := h.playerSnapshot(ctx)
	s.sendJSON(connectedMsg{Type: "connected", ID: s.id, Players: players})
	log.Info("session opened", "player_id", s.id, "remote", r.RemoteAddr)
}

// closeSession tears a session down and removes its player everywhere.
func (h *Hub) closeSession(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	h.mu.Unlock()
	s.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
	defer cancel()
	if err := h.registry.Delete(ctx, s.id); err != nil {
		log.Warn("failed to deregister player", "player_id", s.id, "error", err)
	}
	h.bus.PublishPlayerUpdate(ctx, bus.PlayerUpdate{PlayerID: s.id})
	log.Info("session closed", "player_id", s.id)
}

// CloseAll disconnects every session, shutdown path.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	open := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()
	for _, s := range open {
		s.shutdown()
	}
}

// Run consumes bus events until ctx is cancelled. Player updates trigger a
// registry re-read and fan-out; invalidations purge local copies and push a
// best-effort refreshed chunk.
func (h *Hub) Run(ctx context.Context) {
	sub := h.bus.Subscribe(ctx)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.PlayerUpdates:
			if !ok {
				return
			}
			h.broadcastPlayers(ctx)
		case inv, ok := <-sub.ChunkInvalidates:
			if !ok {
				return
			}
			h.handleInvalidate(inv)
		}
	}
}

// handleInvalidate purges local copies and refetches off the consumer loop,
// so a slow generation cannot stall player update fan-out behind it.
func (h *Hub) handleInvalidate(inv bus.ChunkInvalidate) {
	h.local.Invalidate(inv.CX, inv.CY)
	go h.pushChunkUpdate(inv.CX, inv.CY)
}

func (h *Hub) playerSnapshot(ctx context.Context) map[string]player.Position {
	players, err := h.registry.List(ctx)
	if err != nil {
		log.Warn("failed to list players", "error", err)
		return map[string]player.Position{}
	}
	return players
}

func (h *Hub) broadcastPlayers(ctx context.Context) {
	players := h.playerSnapshot(ctx)
	msg := playerUpdateMsg{Type: "playerUpdate", Players: players}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		s.sendJSON(msg)
	}
}

// pushChunkUpdate refetches an invalidated chunk and pushes it to every
// local session. Losing this update is accepted lag; the client's next
// request sees fresh state regardless.
func (h *Hub) pushChunkUpdate(cx, cy int) {
	h.mu.RLock()
	idle := len(h.sessions) == 0
	h.mu.RUnlock()
	if idle {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
	defer cancel()
	c, err := h.chunks.Get(ctx, cx, cy, terrain.ModeChunk)
	if err != nil {
		log.Debug("skipping chunk update push", "chunk", terrain.Key(cx, cy), "error", err)
		return
	}

	msg := chunkMsg{Type: "chunkUpdate", Chunk: c.Wire(terrain.ModeChunk)}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		s.sendCompressed(msg)
	}
}

func (h *Hub) handleHandshake(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
	defer cancel()
	s.sendJSON(connectedMsg{Type: "handshook", ID: s.id, Players: h.playerSnapshot(ctx)})
}

func (h *Hub) handleRequestChunk(s *Session, msg clientMessage) {
	mode := terrain.Mode(msg.Mode)
	if mode == "" {
		mode = terrain.ModeChunk
	}
	if !msg.hasCoords() || !terrain.ValidMode(mode) {
		s.sendJSON(invalidRequest())
		return
	}

	// Chunk requests address the containing chunk; partial modes address
	// their start cell directly. Both floor, so -0.5 lands in cell -1.
	cx, cy := int(math.Floor(*msg.X)), int(math.Floor(*msg.Y))
	if mode == terrain.ModeChunk {
		cx = floorDiv(cx, terrain.ChunkSize)
		cy = floorDiv(cy, terrain.ChunkSize)
	}

	c, err := h.chunks.Get(context.Background(), cx, cy, mode)
	if err != nil {
		log.Warn("chunk request failed", "player_id", s.id, "chunk", terrain.Key(cx, cy), "mode", mode, "error", err)
		s.sendJSON(errorMsg{Type: "error", Message: "Chunk generation failed"})
		return
	}
	s.sendCompressed(chunkMsg{Type: "chunkData", Chunk: c.Wire(mode)})
}

func (h *Hub) handleMove(s *Session, msg clientMessage) {
	if !msg.hasCoords() {
		s.sendJSON(invalidRequest())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
	defer cancel()
	pos := player.Position{X: *msg.X, Y: *msg.Y}
	if err := h.registry.Set(ctx, s.id, pos); err != nil {
		log.Warn("failed to move player", "player_id", s.id, "error", err)
		return
	}
	h.bus.PublishPlayerUpdate(ctx, bus.PlayerUpdate{PlayerID: s.id, X: pos.X, Y: pos.Y})
}

func (h *Hub) handleMining(s *Session, msg clientMessage) {
	if !msg.hasCoords() {
		s.sendJSON(invalidRequest())
		return
	}
	x, y := int(math.Floor(*msg.X)), int(math.Floor(*msg.Y))

	ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
	defer cancel()
	res, err := h.miner.Mine(ctx, s.id, x, y, msg.Tool)
	if err != nil {
		log.Debug("mining failed", "player_id", s.id, "tile", terrain.Key(x, y), "error", err)
		s.sendJSON(miningFailedMsg{Type: "miningFailed", X: x, Y: y})
		return
	}
	s.sendJSON(miningSuccessMsg{
		Type:     "miningSuccess",
		Resource: res.Resource,
		Amount:   res.Amount,
		X:        res.X,
		Y:        res.Y,
	})
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
