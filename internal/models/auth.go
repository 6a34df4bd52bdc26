package models

import "time"

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	PhoneNumber string     `json:"phone_number" validate:"required,numeric,min=10,max=11"`
	Password    string     `json:"password" validate:"required"`
	DeviceInfo  string     `json:"device_info" validate:"omitempty,max=255"`
	Client      ClientInfo `json:"-"`
}

// RegisterRequest creates an account and signs it in.
type RegisterRequest struct {
	PhoneNumber string     `json:"phone_number" validate:"required,numeric,min=10,max=11"`
	Password    string     `json:"password" validate:"required,min=6"`
	DeviceInfo  string     `json:"device_info" validate:"omitempty,max=255"`
	UserType    UserType   `json:"user_type" validate:"omitempty,oneof=customer partner"`
	Client      ClientInfo `json:"-"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair.
type RefreshTokenRequest struct {
	RefreshToken string     `json:"refresh_token" validate:"required"`
	Client       ClientInfo `json:"-"`
}

// LogoutRequest targets one session; empty means the caller's current one.
type LogoutRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
}

// ClientInfo is request metadata recorded on sessions and audit rows.
type ClientInfo struct {
	IP        string
	UserAgent string
	Platform  string
}

// LoginResponse is returned by login, signup and refresh.
type LoginResponse struct {
	AccessToken      string       `json:"access_token"`
	TokenType        string       `json:"token_type"`
	ExpiresIn        int64        `json:"expires_in"`
	ExpiresAt        int64        `json:"expires_at"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresIn int64        `json:"refresh_expires_in"`
	RefreshExpiresAt int64        `json:"refresh_expires_at"`
	SessionID        string       `json:"session_id"`
	User             *UserSummary `json:"user"`
}

// TokenClass distinguishes access from refresh credentials.
type TokenClass string

const (
	TokenClassAccess  TokenClass = "access"
	TokenClassRefresh TokenClass = "refresh"
)

// Valid reports whether c is a known class.
func (c TokenClass) Valid() bool {
	return c == TokenClassAccess || c == TokenClassRefresh
}

// TokenClaims is the decoded, verified content of a credential token.
type TokenClaims struct {
	Subject     string
	PhoneNumber string
	Class       TokenClass
	SessionID   string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// IssuedToken is a signed token with its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is the access and refresh tokens minted for one session.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	User      *User
	SessionID string
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}
