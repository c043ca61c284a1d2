package redis

import (
	"context"
	"fmt"

	"amora-realtime/internal/database"
)

// BlockRepository persists user block lists in Redis, one set per blocker.
// The realtime notification is the relay's job; this is only the durable
// list the rest of the product reads.
type BlockRepository struct {
	client *database.RedisClient
}

// NewBlockRepository creates a new BlockRepository
func NewBlockRepository(client *database.RedisClient) *BlockRepository {
	return &BlockRepository{client: client}
}

func blockListKey(userID string) string {
	return fmt.Sprintf("blocks:%s", userID)
}

// Block adds targetID to actorID's block list.
func (r *BlockRepository) Block(ctx context.Context, actorID, targetID string) error {
	if err := r.client.SafeSAdd(ctx, blockListKey(actorID), targetID).Err(); err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

// Unblock removes targetID from actorID's block list.
func (r *BlockRepository) Unblock(ctx context.Context, actorID, targetID string) error {
	if err := r.client.SafeSRem(ctx, blockListKey(actorID), targetID).Err(); err != nil {
		return fmt.Errorf("failed to unblock user: %w", err)
	}
	return nil
}

// IsBlocked reports whether actorID has blocked targetID.
func (r *BlockRepository) IsBlocked(ctx context.Context, actorID, targetID string) (bool, error) {
	blocked, err := r.client.SafeSIsMember(ctx, blockListKey(actorID), targetID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check block list: %w", err)
	}
	return blocked, nil
}

// BlockedUsers lists everyone actorID has blocked.
func (r *BlockRepository) BlockedUsers(ctx context.Context, actorID string) ([]string, error) {
	users, err := r.client.SafeSMembers(ctx, blockListKey(actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked users: %w", err)
	}
	return users, nil
}

// IsDegraded returns true if Redis is in degraded mode
func (r *BlockRepository) IsDegraded() bool {
	return r.client.IsDegraded()
}
