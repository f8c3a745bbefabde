package domain

import "time"

// User is the forum user this feature joins against. Identity is owned by the
// platform; we only read the fields the serializer exposes.
type User struct {
	ID             int        `json:"id" db:"id"`
	Username       string     `json:"username" db:"username"`
	Name           *string    `json:"name" db:"name"`
	AvatarTemplate *string    `json:"avatar_template" db:"avatar_template"`
	LastSeenAt     *time.Time `json:"last_seen_at" db:"last_seen_at"`
	Admin          bool       `json:"admin" db:"admin"`
}
