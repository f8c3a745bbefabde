package domain

import "time"

// Location types. The denormalized location_type column always mirrors is_virtual.
const (
	LocationTypeReal    = "real"
	LocationTypeVirtual = "virtual"
)

// Provenance of a stored location reading.
const (
	LocationSourceGPS     = "gps"
	LocationSourceIP      = "ip"
	LocationSourceUnknown = "unknown"
	LocationSourceVirtual = "virtual"
)

// UserLocation is a user's shared location. One row per user, keyed on user_id.
// Real locations are stored already noised; removal flips enabled instead of
// deleting the row.
type UserLocation struct {
	ID               int       `json:"id" db:"id"`
	UserID           int       `json:"user_id" db:"user_id"`
	Latitude         float64   `json:"latitude" db:"latitude"`
	Longitude        float64   `json:"longitude" db:"longitude"`
	Enabled          bool      `json:"enabled" db:"enabled"`
	IsVirtual        bool      `json:"is_virtual" db:"is_virtual"`
	VirtualAddress   *string   `json:"virtual_address" db:"virtual_address"`
	LocationType     string    `json:"location_type" db:"location_type"`
	LocationSource   string    `json:"location_source" db:"location_source"`
	LocationAccuracy *float64  `json:"location_accuracy" db:"location_accuracy"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// NearbyRow is one proximity-search hit: a location joined with its owner and
// the great-circle distance from the search point.
type NearbyRow struct {
	Location   UserLocation
	User       User
	DistanceKm float64
}

// CoordinateCluster marks a coordinate pair shared by several enabled rows,
// which usually means spoofed or defaulted readings.
type CoordinateCluster struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int     `json:"count"`
}

// LocationStats are the aggregate counts exposed on the admin debug endpoint.
type LocationStats struct {
	Total    int                 `json:"total"`
	Enabled  int                 `json:"enabled"`
	Real     int                 `json:"real"`
	Virtual  int                 `json:"virtual"`
	BySource map[string]int      `json:"by_source"`
	Clusters []CoordinateCluster `json:"clusters"`
}

// ValidCoordinates reports whether the pair is within the WGS84 degree ranges.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// ValidLocationSource reports whether s is a known real-location provenance tag.
func ValidLocationSource(s string) bool {
	switch s {
	case LocationSourceGPS, LocationSourceIP, LocationSourceUnknown:
		return true
	}
	return false
}
