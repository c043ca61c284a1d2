package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"amora-realtime/internal/database"
	"amora-realtime/pkg/logger"
	"amora-realtime/pkg/push"
)

// DeviceTokenRepository stores push notification device tokens in Redis,
// one set of JSON-encoded tokens per user.
type DeviceTokenRepository struct {
	client *database.RedisClient
}

// NewDeviceTokenRepository creates a new DeviceTokenRepository
func NewDeviceTokenRepository(client *database.RedisClient) *DeviceTokenRepository {
	return &DeviceTokenRepository{client: client}
}

func userTokensKey(userID string) string {
	return fmt.Sprintf("push:user:%s:tokens", userID)
}

// Save registers a device token for a user. Re-registering the same
// token/platform pair is a no-op.
func (r *DeviceTokenRepository) Save(ctx context.Context, token *push.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal device token: %w", err)
	}

	if err := r.client.SafeSAdd(ctx, userTokensKey(token.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to save device token: %w", err)
	}

	logger.Debug("device token saved",
		zap.String("user_id", token.UserID),
		zap.String("platform", token.Platform))

	return nil
}

// Tokens retrieves all device tokens registered for a user.
func (r *DeviceTokenRepository) Tokens(ctx context.Context, userID string) ([]*push.Token, error) {
	members, err := r.client.SafeSMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}

	tokens := make([]*push.Token, 0, len(members))
	for _, member := range members {
		token := &push.Token{}
		if err := json.Unmarshal([]byte(member), token); err != nil {
			logger.Warn("skipping unreadable device token",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

// Delete removes one of a user's device tokens, matched by token value.
func (r *DeviceTokenRepository) Delete(ctx context.Context, userID, tokenValue string) error {
	members, err := r.client.SafeSMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to get device tokens: %w", err)
	}

	for _, member := range members {
		token := &push.Token{}
		if err := json.Unmarshal([]byte(member), token); err != nil {
			continue
		}
		if token.Token == tokenValue {
			if err := r.client.SafeSRem(ctx, userTokensKey(userID), member).Err(); err != nil {
				return fmt.Errorf("failed to delete device token: %w", err)
			}
			return nil
		}
	}

	return nil // Token not found
}

// IsDegraded returns true if Redis is in degraded mode
func (r *DeviceTokenRepository) IsDegraded() bool {
	return r.client.IsDegraded()
}
