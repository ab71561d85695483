package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Topics shared by every node in the fleet. Delivery is best-effort,
// at-least-once; receivers must be idempotent.
const (
	TopicPlayerUpdates   = "player_updates"
	TopicChunkInvalidate = "chunk_invalidate"
)

// PlayerUpdate hints that the player registry changed; receivers re-read the
// registry rather than trusting the payload.
type PlayerUpdate struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// ChunkInvalidate tells every subscriber to drop locally cached copies of a
// chunk.
type ChunkInvalidate struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
}

// Bus is the cross-process event bus backed by redis pub/sub.
type Bus struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func (b *Bus) PublishPlayerUpdate(ctx context.Context, update PlayerUpdate) error {
	return b.publish(ctx, TopicPlayerUpdates, update)
}

func (b *Bus) PublishChunkInvalidate(ctx context.Context, inv ChunkInvalidate) error {
	return b.publish(ctx, TopicChunkInvalidate, inv)
}

func (b *Bus) publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	if err := b.rdb.Publish(ctx, topic, data).Err(); err != nil {
		// Correctness survives a lost invalidation: the store stays
		// authoritative and staleness is bounded by the cache TTL.
		log.Error("failed to publish bus event", "topic", topic, "error", err)
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// Subscription delivers decoded bus events until its context is cancelled.
type Subscription struct {
	PlayerUpdates    <-chan PlayerUpdate
	ChunkInvalidates <-chan ChunkInvalidate
	pubsub           *redis.PubSub
}

// Close tears down the underlying redis subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe opens a subscription on both topics and starts the decode loop.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	pubsub := b.rdb.Subscribe(ctx, TopicPlayerUpdates, TopicChunkInvalidate)
	players := make(chan PlayerUpdate, 64)
	invalidations := make(chan ChunkInvalidate, 64)

	go func() {
		defer close(players)
		defer close(invalidations)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				switch msg.Channel {
				case TopicPlayerUpdates:
					var update PlayerUpdate
					if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
						log.Warn("malformed player update event", "error", err)
						continue
					}
					select {
					case players <- update:
					default:
						log.Warn("player update channel full, dropping event")
					}
				case TopicChunkInvalidate:
					var inv ChunkInvalidate
					if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
						log.Warn("malformed chunk invalidate event", "error", err)
						continue
					}
					select {
					case invalidations <- inv:
					default:
						log.Warn("chunk invalidate channel full, dropping event")
					}
				}
			}
		}
	}()

	return &Subscription{
		PlayerUpdates:    players,
		ChunkInvalidates: invalidations,
		pubsub:           pubsub,
	}
}
