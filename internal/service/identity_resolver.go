package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	"github.com/noah-isme/gvn-booking-api/pkg/security"
)

type resolverSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type resolverUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// IdentityResolver turns an Authorization header into a principal. It never
// fails a request: anything short of a current access token for an active
// session of an existing user resolves to nil.
type IdentityResolver struct {
	tokens   *TokenService
	sessions resolverSessionReader
	users    resolverUserReader
	logger   *zap.Logger
}

// NewIdentityResolver constructs the resolver.
func NewIdentityResolver(tokens *TokenService, sessions resolverSessionReader, users resolverUserReader, logger *zap.Logger) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{tokens: tokens, sessions: sessions, users: users, logger: logger}
}

// BearerToken extracts the token from "Bearer <token>". The scheme is case
// insensitive.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Resolve returns the principal for the header, or nil.
func (r *IdentityResolver) Resolve(ctx context.Context, header string) *models.Principal {
	token, ok := BearerToken(header)
	if !ok {
		return nil
	}

	claims, err := r.tokens.Decode(token)
	if err != nil || claims.Class != models.TokenClassAccess || r.tokens.Expired(claims) {
		return nil
	}
	if claims.SessionID == "" {
		return nil
	}

	session, err := r.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		r.logger.Warn("identity resolution failed to load session", zap.Error(err))
		return nil
	}
	if session == nil || !session.IsActive || session.UserID != claims.Subject {
		return nil
	}
	if !security.TokenMatches(token, session.AccessTokenHash) {
		return nil
	}

	user, err := r.users.FindByID(ctx, claims.Subject)
	if err != nil {
		r.logger.Warn("identity resolution failed to load user", zap.Error(err))
		return nil
	}
	if user == nil {
		return nil
	}
	return &models.Principal{User: user, SessionID: session.ID}
}
