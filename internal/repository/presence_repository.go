package repository

import (
	"context"
	"time"
)

// PresenceRepository tracks when users were last active. A user counts as
// online when their last-seen timestamp is recent; callers treat lookup
// failures as "offline" rather than as errors.
type PresenceRepository interface {
	Touch(ctx context.Context, userID int) error
	LastSeen(ctx context.Context, userIDs []int) (map[int]time.Time, error)
}
