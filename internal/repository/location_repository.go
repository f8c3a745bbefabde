package repository

import (
	"context"

	"github.com/atang/wimf-backend/internal/domain"
)

type LocationRepository interface {
	// Upsert writes or overwrites the single row for loc.UserID and sets
	// enabled=true. The persisted record (with id and timestamps) is written
	// back into loc.
	Upsert(ctx context.Context, loc *domain.UserLocation) error

	// Disable soft-deletes the user's row. A missing row is a no-op.
	Disable(ctx context.Context, userID int) error

	// FindEnabled returns the user's row only when enabled=true, otherwise
	// domain.ErrLocationNotFound.
	FindEnabled(ctx context.Context, userID int) (*domain.UserLocation, error)

	// Nearby returns enabled rows within radiusKm of the point, joined with
	// their owners, ordered by ascending distance, capped at limit.
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]domain.NearbyRow, error)

	// Stats returns aggregate counts for the admin debug endpoint.
	Stats(ctx context.Context) (*domain.LocationStats, error)
}
