package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/gvn-booking-api/internal/models"
)

var (
	// ErrTokenMalformed is returned for tokens that are not well-formed or lack required claims.
	ErrTokenMalformed = errors.New("token is malformed")
	// ErrTokenSignatureInvalid is returned when the signature does not verify.
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
)

// TokenConfig holds the signing secret and lifetimes for issued tokens.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenSubject identifies who a token is minted for.
type TokenSubject struct {
	UserID      string
	PhoneNumber string
	SessionID   string
}

type tokenClaims struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Type        string `json:"type"`
	SessionID   string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 credential tokens. Expiry is not
// enforced by Decode; callers check it with IsExpired or the decoded claims.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
	now        func() time.Time
}

// NewTokenService validates the configuration and builds the codec.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()),
		now:        time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs a token of the given class valid for ttl. A zero ttl yields a
// token that is already expired.
func (s *TokenService) Issue(subject TokenSubject, class models.TokenClass, ttl time.Duration) (models.IssuedToken, error) {
	if subject.UserID == "" {
		return models.IssuedToken{}, errors.New("token subject is required")
	}
	if !class.Valid() {
		return models.IssuedToken{}, fmt.Errorf("unknown token class %q", class)
	}
	if ttl < 0 {
		ttl = 0
	}

	issuedAt := jwt.NewNumericDate(s.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(ttl))
	claims := tokenClaims{
		PhoneNumber: subject.PhoneNumber,
		Type:        string(class),
		SessionID:   subject.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("sign %s token: %w", class, err)
	}
	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt.Time}, nil
}

// IssuePair mints an access and a refresh token for one session.
func (s *TokenService) IssuePair(subject TokenSubject) (models.TokenPair, error) {
	access, err := s.Issue(subject, models.TokenClassAccess, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.Issue(subject, models.TokenClassRefresh, s.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Decode verifies the signature and required claims without checking expiry.
func (s *TokenService) Decode(token string) (*models.TokenClaims, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}

	claims := &tokenClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenSignatureInvalid
		}
		return nil, ErrTokenMalformed
	}

	class := models.TokenClass(claims.Type)
	if claims.Subject == "" || !class.Valid() || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}

	decoded := &models.TokenClaims{
		Subject:     claims.Subject,
		PhoneNumber: claims.PhoneNumber,
		Class:       class,
		SessionID:   claims.SessionID,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		decoded.IssuedAt = claims.IssuedAt.Time
	}
	return decoded, nil
}

// Expired reports whether decoded claims are past their expiry.
func (s *TokenService) Expired(claims *models.TokenClaims) bool {
	if claims == nil {
		return true
	}
	return !s.now().Before(claims.ExpiresAt)
}

// IsExpired reports true for expired tokens and for any token that fails to decode.
func (s *TokenService) IsExpired(token string) bool {
	claims, err := s.Decode(token)
	if err != nil {
		return true
	}
	return s.Expired(claims)
}

// ClassOf returns the class of a verified token.
func (s *TokenService) ClassOf(token string) (models.TokenClass, bool) {
	claims, err := s.Decode(token)
	if err != nil {
		return "", false
	}
	return claims.Class, true
}
