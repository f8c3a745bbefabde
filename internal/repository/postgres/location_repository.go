package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atang/wimf-backend/internal/domain"
	"github.com/atang/wimf-backend/internal/repository"
	"github.com/jmoiron/sqlx"
)

// haversineSQL computes great-circle distance in km between ($1,$2) and a
// row's coordinates. Mirrors geo.DistanceKm; the acos argument is clamped so
// identical or antipodal points never produce a domain error.
const haversineSQL = `
	6371 * acos(
		LEAST(1.0, GREATEST(-1.0,
			cos(radians($1)) * cos(radians(latitude)) *
			cos(radians(longitude) - radians($2)) +
			sin(radians($1)) * sin(radians(latitude))
		))
	)`

type locationRepository struct {
	db *sqlx.DB
}

func NewLocationRepository(db *sqlx.DB) repository.LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Upsert(ctx context.Context, loc *domain.UserLocation) error {
	query := `
		INSERT INTO user_locations (
			user_id, latitude, longitude, enabled,
			is_virtual, virtual_address, location_type,
			location_source, location_accuracy
		)
		VALUES ($1, $2, $3, true, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			latitude          = EXCLUDED.latitude,
			longitude         = EXCLUDED.longitude,
			enabled           = true,
			is_virtual        = EXCLUDED.is_virtual,
			virtual_address   = EXCLUDED.virtual_address,
			location_type     = EXCLUDED.location_type,
			location_source   = EXCLUDED.location_source,
			location_accuracy = EXCLUDED.location_accuracy,
			updated_at        = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(
		ctx, query,
		loc.UserID, loc.Latitude, loc.Longitude,
		loc.IsVirtual, loc.VirtualAddress, loc.LocationType,
		loc.LocationSource, loc.LocationAccuracy,
	).Scan(&loc.ID, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert location: %w", err)
	}
	loc.Enabled = true
	return nil
}

func (r *locationRepository) Disable(ctx context.Context, userID int) error {
	query := `
		UPDATE user_locations
		SET enabled = false, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`
	// Zero rows affected is fine: disabling a non-existent record is a no-op.
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to disable location: %w", err)
	}
	return nil
}

func (r *locationRepository) FindEnabled(ctx context.Context, userID int) (*domain.UserLocation, error) {
	var loc domain.UserLocation
	query := `
		SELECT id, user_id, latitude, longitude, enabled,
		       is_virtual, virtual_address, location_type,
		       location_source, location_accuracy,
		       created_at, updated_at
		FROM user_locations
		WHERE user_id = $1 AND enabled = true
	`
	err := r.db.GetContext(ctx, &loc, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &loc, nil
}

func (r *locationRepository) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]domain.NearbyRow, error) {
	query := fmt.Sprintf(`
		SELECT ul.id, ul.user_id, ul.latitude, ul.longitude, ul.enabled,
		       ul.is_virtual, ul.virtual_address, ul.location_type,
		       ul.location_source, ul.location_accuracy,
		       ul.created_at, ul.updated_at,
		       u.id, u.username, u.name, u.avatar_template, u.last_seen_at, u.admin,
		       %s AS distance_km
		FROM user_locations ul
		JOIN users u ON u.id = ul.user_id
		WHERE ul.enabled = true
		  AND %s <= $3
		ORDER BY distance_km ASC
		LIMIT $4
	`, haversineSQL, haversineSQL)

	rows, err := r.db.QueryContext(ctx, query, lat, lng, radiusKm, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby locations: %w", err)
	}
	defer rows.Close()

	results := make([]domain.NearbyRow, 0)
	for rows.Next() {
		var row domain.NearbyRow
		err := rows.Scan(
			&row.Location.ID, &row.Location.UserID,
			&row.Location.Latitude, &row.Location.Longitude, &row.Location.Enabled,
			&row.Location.IsVirtual, &row.Location.VirtualAddress, &row.Location.LocationType,
			&row.Location.LocationSource, &row.Location.LocationAccuracy,
			&row.Location.CreatedAt, &row.Location.UpdatedAt,
			&row.User.ID, &row.User.Username, &row.User.Name,
			&row.User.AvatarTemplate, &row.User.LastSeenAt, &row.User.Admin,
			&row.DistanceKm,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nearby row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nearby rows: %w", err)
	}

	return results, nil
}

func (r *locationRepository) Stats(ctx context.Context) (*domain.LocationStats, error) {
	stats := &domain.LocationStats{
		BySource: make(map[string]int),
		Clusters: make([]domain.CoordinateCluster, 0),
	}

	countsQuery := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE enabled),
		       COUNT(*) FILTER (WHERE enabled AND NOT is_virtual),
		       COUNT(*) FILTER (WHERE enabled AND is_virtual)
		FROM user_locations
	`
	err := r.db.QueryRowContext(ctx, countsQuery).Scan(
		&stats.Total, &stats.Enabled, &stats.Real, &stats.Virtual,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count locations: %w", err)
	}

	sourceQuery := `
		SELECT location_source, COUNT(*)
		FROM user_locations
		WHERE enabled = true
		GROUP BY location_source
	`
	rows, err := r.db.QueryContext(ctx, sourceQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to count locations by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source counts: %w", err)
	}

	// Coordinates shared by three or more enabled rows are suspicious:
	// users parked on a default pin or spoofing the same point.
	clusterQuery := `
		SELECT ROUND(latitude::numeric, 4)::float8,
		       ROUND(longitude::numeric, 4)::float8,
		       COUNT(*)
		FROM user_locations
		WHERE enabled = true
		GROUP BY 1, 2
		HAVING COUNT(*) >= 3
		ORDER BY COUNT(*) DESC
		LIMIT 20
	`
	clusterRows, err := r.db.QueryContext(ctx, clusterQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinate clusters: %w", err)
	}
	defer clusterRows.Close()
	for clusterRows.Next() {
		var c domain.CoordinateCluster
		if err := clusterRows.Scan(&c.Latitude, &c.Longitude, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan coordinate cluster: %w", err)
		}
		stats.Clusters = append(stats.Clusters, c)
	}
	if err := clusterRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coordinate clusters: %w", err)
	}

	return stats, nil
}
