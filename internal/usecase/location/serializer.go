package location

import (
	"fmt"
	"time"

	"github.com/atang/wimf-backend/internal/config"
	"github.com/atang/wimf-backend/internal/domain"
	"github.com/atang/wimf-backend/internal/geo"
)

// onlineWindow is how recently a user must have been active to show as online.
const onlineWindow = 5 * time.Minute

// NearbyUser is the external record for one proximity-search hit. Field
// selection only: coordinates of other users are never exposed here.
type NearbyUser struct {
	ID                  int        `json:"id"`
	Username            string     `json:"username"`
	Name                *string    `json:"name"`
	AvatarTemplate      *string    `json:"avatar_template"`
	Distance            float64    `json:"distance"`
	LastSeenAt          *time.Time `json:"last_seen_at"`
	IsOnline            bool       `json:"is_online"`
	IsVirtual           bool       `json:"is_virtual"`
	VirtualAddress      *string    `json:"virtual_address"`
	LocationType        string     `json:"location_type"`
	AccuracyClass       string     `json:"accuracy_class,omitempty"`
	LocationDisplayName string     `json:"location_display_name"`
	IsCurrentUser       bool       `json:"is_current_user"`
}

type serializer struct {
	cfg      config.LocationConfig
	lastSeen map[int]time.Time
	now      time.Time
}

func newSerializer(cfg config.LocationConfig, lastSeen map[int]time.Time) *serializer {
	return &serializer{
		cfg:      cfg,
		lastSeen: lastSeen,
		now:      time.Now(),
	}
}

func (s *serializer) nearbyUser(row domain.NearbyRow, isCurrentUser bool) NearbyUser {
	u := NearbyUser{
		ID:             row.User.ID,
		Username:       row.User.Username,
		Name:           row.User.Name,
		AvatarTemplate: row.User.AvatarTemplate,
		Distance:       geo.RoundKm(row.DistanceKm),
		LastSeenAt:     row.User.LastSeenAt,
		IsVirtual:      row.Location.IsVirtual,
		VirtualAddress: row.Location.VirtualAddress,
		LocationType:   row.Location.LocationType,
		IsCurrentUser:  isCurrentUser,
	}

	// Presence store wins over the (possibly stale) users.last_seen_at column.
	if seen, ok := s.lastSeen[row.User.ID]; ok {
		u.LastSeenAt = &seen
	}
	if u.LastSeenAt != nil {
		u.IsOnline = s.now.Sub(*u.LastSeenAt) <= onlineWindow
	}

	u.AccuracyClass = s.accuracyClass(row.Location)
	u.LocationDisplayName = s.displayName(u)

	return u
}

func (s *serializer) accuracyClass(loc domain.UserLocation) string {
	if loc.LocationAccuracy == nil {
		return ""
	}
	switch {
	case loc.LocationSource != domain.LocationSourceGPS && loc.LocationSource != domain.LocationSourceIP:
		return ""
	case *loc.LocationAccuracy <= s.cfg.HighAccuracyMeters:
		return "high"
	case *loc.LocationAccuracy <= s.cfg.MediumAccuracyMeters:
		return "medium"
	default:
		return "low"
	}
}

func (s *serializer) displayName(u NearbyUser) string {
	if u.IsVirtual && u.VirtualAddress != nil && *u.VirtualAddress != "" {
		return *u.VirtualAddress
	}
	return fmt.Sprintf("%skm away", geo.FormatKm(u.Distance))
}
