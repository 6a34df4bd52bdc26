package models

import "time"

// Session is one login event. Token values are kept only as SHA-256 digests;
// a refresh replaces both digests and expiries in place.
type Session struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	AccessTokenHash  string    `db:"access_token_hash" json:"-"`
	AccessExpiresAt  time.Time `db:"access_expires_at" json:"access_expires_at"`
	RefreshTokenHash string    `db:"refresh_token_hash" json:"-"`
	RefreshExpiresAt time.Time `db:"refresh_expires_at" json:"refresh_expires_at"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	DeviceInfo       *string   `db:"device_info" json:"device_info,omitempty"`
	Platform         *string   `db:"platform" json:"platform,omitempty"`
	IPAddress        *string   `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent        *string   `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// RefreshExpired reports whether the recorded refresh expiry has passed.
func (s *Session) RefreshExpired(now time.Time) bool {
	return !now.Before(s.RefreshExpiresAt)
}

// SessionRotation carries the new token digests written by a refresh.
type SessionRotation struct {
	SessionID           string
	PreviousRefreshHash string
	AccessTokenHash     string
	AccessExpiresAt     time.Time
	RefreshTokenHash    string
	RefreshExpiresAt    time.Time
}

// SessionView is what a user sees when listing their sessions.
type SessionView struct {
	ID               string    `json:"id"`
	DeviceInfo       *string   `json:"device_info,omitempty"`
	Platform         *string   `json:"platform,omitempty"`
	IPAddress        *string   `json:"ip_address,omitempty"`
	IsActive         bool      `json:"is_active"`
	Current          bool      `json:"current"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
