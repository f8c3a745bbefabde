package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atang/wimf-backend/internal/config"
	"github.com/atang/wimf-backend/internal/domain"
	"github.com/atang/wimf-backend/internal/geo"
	"github.com/atang/wimf-backend/internal/infrastructure/geoip"
	"github.com/atang/wimf-backend/internal/repository"
)

type LocationUseCase struct {
	locationRepo repository.LocationRepository
	userRepo     repository.UserRepository
	presenceRepo repository.PresenceRepository
	geoipClient  *geoip.Client
	jitterer     *geo.Jitterer
	cfg          config.LocationConfig
}

func NewLocationUseCase(
	locationRepo repository.LocationRepository,
	userRepo repository.UserRepository,
	presenceRepo repository.PresenceRepository,
	geoipClient *geoip.Client,
	jitterer *geo.Jitterer,
	cfg config.LocationConfig,
) *LocationUseCase {
	return &LocationUseCase{
		locationRepo: locationRepo,
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
		geoipClient:  geoipClient,
		jitterer:     jitterer,
		cfg:          cfg,
	}
}

// ShareLocationRequest carries a validated share payload from the handler.
type ShareLocationRequest struct {
	Latitude         float64
	Longitude        float64
	IsVirtual        bool
	VirtualAddress   *string
	LocationSource   string
	LocationAccuracy *float64
}

// OwnLocation is the caller's own stored location. This is the only payload
// that ever carries coordinates back out, and they are the stored (noised)
// values, never the raw reading.
type OwnLocation struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	IsVirtual        bool     `json:"is_virtual"`
	VirtualAddress   *string  `json:"virtual_address,omitempty"`
	LocationType     string   `json:"location_type"`
	LocationSource   string   `json:"location_source"`
	LocationAccuracy *float64 `json:"location_accuracy,omitempty"`
}

// FeatureConfig echoes the feature settings the frontend needs.
type FeatureConfig struct {
	VirtualLocationEnabled bool    `json:"virtual_location_enabled"`
	MapProvider            string  `json:"map_provider"`
	MaxSearchDistanceKm    float64 `json:"max_search_distance_km"`
	HighAccuracyMeters     float64 `json:"high_accuracy_meters"`
	MediumAccuracyMeters   float64 `json:"medium_accuracy_meters"`
}

// CurrentStateResponse is the GET index payload: the caller plus their own
// enabled location (nil when none) and the feature configuration.
type CurrentStateResponse struct {
	CurrentUser CurrentUserState `json:"current_user"`
	Config      FeatureConfig    `json:"config"`
}

type CurrentUserState struct {
	ID             int          `json:"id"`
	Username       string       `json:"username"`
	Name           *string      `json:"name"`
	AvatarTemplate *string      `json:"avatar_template"`
	Location       *OwnLocation `json:"location"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NearbyResponse is the proximity-search payload: ranked users, the search
// echo and coarse counts by location source.
type NearbyResponse struct {
	Users          []NearbyUser   `json:"users"`
	Total          int            `json:"total"`
	SearchLocation Coordinates    `json:"search_location"`
	SearchDistance float64        `json:"search_distance"`
	AccuracyStats  map[string]int `json:"accuracy_stats"`
}

// IPLocationResponse is a coarse city-level position for the caller's IP.
type IPLocationResponse struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	City           string  `json:"city"`
	Country        string  `json:"country"`
	LocationSource string  `json:"location_source"`
}

// GetCurrentState returns the caller's own enabled location plus feature config.
func (uc *LocationUseCase) GetCurrentState(ctx context.Context, userID int) (*CurrentStateResponse, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	state := CurrentUserState{
		ID:             user.ID,
		Username:       user.Username,
		Name:           user.Name,
		AvatarTemplate: user.AvatarTemplate,
	}

	loc, err := uc.locationRepo.FindEnabled(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrLocationNotFound) {
		return nil, fmt.Errorf("failed to get current location: %w", err)
	}
	if loc != nil {
		state.Location = ownLocationOf(loc)
	}

	return &CurrentStateResponse{
		CurrentUser: state,
		Config:      uc.featureConfig(),
	}, nil
}

// ShareLocation validates and persists a location share. Real locations are
// noised before storage; virtual ones are stored as placed. Returns the
// stored record, never the raw input.
func (uc *LocationUseCase) ShareLocation(ctx context.Context, userID int, req *ShareLocationRequest) (*OwnLocation, error) {
	if !domain.ValidCoordinates(req.Latitude, req.Longitude) {
		return nil, domain.ErrInvalidCoordinates
	}
	// (0,0) is technically valid but in practice means the position fix failed.
	if req.Latitude == 0 && req.Longitude == 0 {
		return nil, domain.ErrDegenerateCoordinates
	}

	loc := &domain.UserLocation{
		UserID:    userID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}

	if req.IsVirtual {
		if !uc.cfg.VirtualEnabled {
			return nil, domain.ErrFeatureDisabled
		}
		if req.VirtualAddress == nil || strings.TrimSpace(*req.VirtualAddress) == "" {
			return nil, domain.ErrMissingAddress
		}
		address := strings.TrimSpace(*req.VirtualAddress)
		loc.IsVirtual = true
		loc.VirtualAddress = &address
		loc.LocationType = domain.LocationTypeVirtual
		loc.LocationSource = domain.LocationSourceVirtual
	} else {
		source := req.LocationSource
		if source == "" {
			source = domain.LocationSourceUnknown
		}
		if !domain.ValidLocationSource(source) {
			return nil, domain.ErrInvalidSource
		}
		loc.LocationType = domain.LocationTypeReal
		loc.LocationSource = source
		// Accuracy is a sensor reading; it only makes sense for measured fixes.
		if req.LocationAccuracy != nil && *req.LocationAccuracy >= 0 && source != domain.LocationSourceUnknown {
			accuracy := *req.LocationAccuracy
			loc.LocationAccuracy = &accuracy
		}
		loc.Latitude, loc.Longitude = uc.jitterer.Jitter(req.Latitude, req.Longitude)
	}

	if err := uc.locationRepo.Upsert(ctx, loc); err != nil {
		return nil, fmt.Errorf("failed to store location: %w", err)
	}

	return ownLocationOf(loc), nil
}

// FindNearby runs the proximity search. The caller's own enabled location is
// always included and flagged, prepended when the main query missed it,
// provided it falls within the effective radius.
func (uc *LocationUseCase) FindNearby(ctx context.Context, user *domain.User, lat, lng, requestedKm float64) (*NearbyResponse, error) {
	if !domain.ValidCoordinates(lat, lng) {
		return nil, domain.ErrInvalidCoordinates
	}

	radius := requestedKm
	if radius <= 0 {
		radius = uc.cfg.DefaultRadiusKm
	}
	if radius > uc.cfg.MaxRadiusKm {
		radius = uc.cfg.MaxRadiusKm
	}

	rows, err := uc.locationRepo.Nearby(ctx, lat, lng, radius, uc.cfg.NearbyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby locations: %w", err)
	}

	selfIncluded := false
	for _, row := range rows {
		if row.Location.UserID == user.ID {
			selfIncluded = true
			break
		}
	}

	// The display limit may have crowded the caller out. Guarantee their own
	// enabled location shows up via a single supplemental fetch and prepend.
	if !selfIncluded {
		selfLoc, err := uc.locationRepo.FindEnabled(ctx, user.ID)
		if err != nil && !errors.Is(err, domain.ErrLocationNotFound) {
			return nil, fmt.Errorf("failed to get own location: %w", err)
		}
		if selfLoc != nil {
			d := geo.DistanceKm(lat, lng, selfLoc.Latitude, selfLoc.Longitude)
			if d <= radius {
				self := domain.NearbyRow{Location: *selfLoc, User: *user, DistanceKm: d}
				rows = append([]domain.NearbyRow{self}, rows...)
			}
		}
	}

	userIDs := make([]int, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.Location.UserID)
	}
	var lastSeen map[int]time.Time
	if uc.presenceRepo != nil {
		// Presence is cosmetic; a dead redis must not break search.
		if seen, err := uc.presenceRepo.LastSeen(ctx, userIDs); err == nil {
			lastSeen = seen
		}
	}

	ser := newSerializer(uc.cfg, lastSeen)
	users := make([]NearbyUser, 0, len(rows))
	stats := make(map[string]int)
	for _, row := range rows {
		users = append(users, ser.nearbyUser(row, row.Location.UserID == user.ID))
		stats[row.Location.LocationSource]++
	}

	return &NearbyResponse{
		Users:          users,
		Total:          len(users),
		SearchLocation: Coordinates{Latitude: lat, Longitude: lng},
		SearchDistance: radius,
		AccuracyStats:  stats,
	}, nil
}

// RemoveLocation soft-disables the caller's record. Idempotent: removing a
// location that was never shared succeeds.
func (uc *LocationUseCase) RemoveLocation(ctx context.Context, userID int) error {
	if err := uc.locationRepo.Disable(ctx, userID); err != nil {
		return fmt.Errorf("failed to remove location: %w", err)
	}
	return nil
}

// DebugStats returns aggregate counts for the admin endpoint.
func (uc *LocationUseCase) DebugStats(ctx context.Context) (*domain.LocationStats, error) {
	stats, err := uc.locationRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect location stats: %w", err)
	}
	return stats, nil
}

// ResolveIPLocation asks the geoip provider for a coarse position. Failures
// surface as ErrUpstreamUnavailable and never affect core operations.
func (uc *LocationUseCase) ResolveIPLocation(ctx context.Context, ip string) (*IPLocationResponse, error) {
	if uc.geoipClient == nil {
		return nil, domain.ErrUpstreamUnavailable
	}

	result, err := uc.geoipClient.Lookup(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	return &IPLocationResponse{
		Latitude:       result.Latitude,
		Longitude:      result.Longitude,
		City:           result.City,
		Country:        result.Country,
		LocationSource: domain.LocationSourceIP,
	}, nil
}

func (uc *LocationUseCase) featureConfig() FeatureConfig {
	return FeatureConfig{
		VirtualLocationEnabled: uc.cfg.VirtualEnabled,
		MapProvider:            uc.cfg.MapProvider,
		MaxSearchDistanceKm:    uc.cfg.MaxRadiusKm,
		HighAccuracyMeters:     uc.cfg.HighAccuracyMeters,
		MediumAccuracyMeters:   uc.cfg.MediumAccuracyMeters,
	}
}

func ownLocationOf(loc *domain.UserLocation) *OwnLocation {
	return &OwnLocation{
		Latitude:         loc.Latitude,
		Longitude:        loc.Longitude,
		IsVirtual:        loc.IsVirtual,
		VirtualAddress:   loc.VirtualAddress,
		LocationType:     loc.LocationType,
		LocationSource:   loc.LocationSource,
		LocationAccuracy: loc.LocationAccuracy,
	}
}
