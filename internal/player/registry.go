package player

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	registryKey = "players"
	registryTTL = time.Hour
	idLength    = 9
)

// Position is a player's last known world position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Registry is the live player registry shared across all server instances,
// stored as a redis hash with a periodically refreshed expiry.
type Registry struct {
	rdb *redis.Client
}

func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// NewID mints a short random player id.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:idLength]
}

// Set stores or moves a player and refreshes the registry expiry.
func (r *Registry) Set(ctx context.Context, id string, pos Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal player position: %w", err)
	}
	if err := r.rdb.HSet(ctx, registryKey, id, data).Err(); err != nil {
		return fmt.Errorf("failed to set player %s: %w", id, err)
	}
	if err := r.rdb.Expire(ctx, registryKey, registryTTL).Err(); err != nil {
		log.Warn("failed to refresh player registry expiry", "error", err)
	}
	return nil
}

// Delete removes a player from the registry.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.rdb.HDel(ctx, registryKey, id).Err(); err != nil {
		return fmt.Errorf("failed to delete player %s: %w", id, err)
	}
	return nil
}

// List returns a snapshot of every registered player.
func (r *Registry) List(ctx context.Context) (map[string]Position, error) {
	entries, err := r.rdb.HGetAll(ctx, registryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	players := make(map[string]Position, len(entries))
	for id, raw := range entries {
		var pos Position
		if err := json.Unmarshal([]byte(raw), &pos); err != nil {
			log.Warn("malformed player registry entry", "player_id", id, "error", err)
			continue
		}
		players[id] = pos
	}
	return players, nil
}

// RefreshLoop keeps the registry TTL alive while any session is running.
func (r *Registry) RefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(registryTTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.rdb.Expire(ctx, registryKey, registryTTL).Err(); err != nil {
				log.Warn("failed to refresh player registry expiry", "error", err)
			}
		}
	}
}
