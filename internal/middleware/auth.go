package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
	"github.com/noah-isme/gvn-booking-api/pkg/logger"
	"github.com/noah-isme/gvn-booking-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the resolved principal.
const ContextPrincipalKey = "currentPrincipal"

type principalCtxKey struct{}

// PrincipalResolver turns an Authorization header into an identity, or nil.
type PrincipalResolver interface {
	Resolve(ctx context.Context, header string) *models.Principal
}

// Authenticate attaches the caller's identity when the request carries a
// usable access token. It never rejects a request; RequireAuth does that.
func Authenticate(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || resolver == nil {
			c.Next()
			return
		}

		principal := resolver.Resolve(c.Request.Context(), header)
		if principal != nil {
			c.Set(ContextPrincipalKey, principal)
			c.Set(logger.UserIDKey, principal.User.ID)
			c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))
		}
		c.Next()
	}
}

// RequireAuth rejects requests that reached it without a resolved identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFromContext(c) == nil {
			response.Abort(c, appErrors.ErrNotAuthenticated)
			return
		}
		c.Next()
	}
}

// PrincipalFromContext returns the principal set by Authenticate.
func PrincipalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}

// WithPrincipal returns a copy of ctx carrying principal.
func WithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, principal)
}

// PrincipalFrom extracts the principal from a request context.
func PrincipalFrom(ctx context.Context) *models.Principal {
	principal, _ := ctx.Value(principalCtxKey{}).(*models.Principal)
	return principal
}
