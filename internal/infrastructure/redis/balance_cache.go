package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/honeynil/ReWearExchange/internal/models"
)

const balanceTTL = 5 * time.Minute

// BalanceCache is a read-through cache of BalanceSummary per user.
type BalanceCache struct {
	client RedisClient
}

func NewBalanceCache(client RedisClient) *BalanceCache {
	return &BalanceCache{client: client}
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("user:%d:balance", userID)
}

// Get reports a miss with ok=false. Decode failures count as a miss.
func (c *BalanceCache) Get(ctx context.Context, userID int64) (*models.BalanceSummary, bool) {
	raw, err := c.client.Get(ctx, balanceKey(userID))
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			slog.Warn("balance cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}
	var summary models.BalanceSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		slog.Warn("balance cache entry corrupt", "user_id", userID, "error", err)
		return nil, false
	}
	return &summary, true
}

func (c *BalanceCache) Set(ctx context.Context, summary *models.BalanceSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, balanceKey(summary.UserID), data, balanceTTL); err != nil {
		slog.Warn("balance cache write failed", "user_id", summary.UserID, "error", err)
	}
}

func (c *BalanceCache) Invalidate(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, balanceKey(id))
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		slog.Warn("balance cache invalidation failed", "user_ids", userIDs, "error", err)
	}
}
