package redisrepo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/atang/wimf-backend/internal/repository"
	"github.com/redis/go-redis/v9"
)

// presenceTTL keeps stale entries from accumulating; anything older than a
// day is irrelevant to a 5-minute online window anyway.
const presenceTTL = 24 * time.Hour

type presenceRepository struct {
	client *redis.Client
}

func NewPresenceRepository(client *redis.Client) repository.PresenceRepository {
	return &presenceRepository{client: client}
}

func (r *presenceRepository) Touch(ctx context.Context, userID int) error {
	key := presenceKey(userID)
	value := strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.client.Set(ctx, key, value, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to record presence: %w", err)
	}
	return nil
}

func (r *presenceRepository) LastSeen(ctx context.Context, userIDs []int) (map[int]time.Time, error) {
	result := make(map[int]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch presence: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		result[userIDs[i]] = time.Unix(unix, 0)
	}

	return result, nil
}

func presenceKey(userID int) string {
	return fmt.Sprintf("presence:last_seen:%d", userID)
}
