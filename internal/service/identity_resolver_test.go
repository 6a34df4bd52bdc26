package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gvn-booking-api/internal/models"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"standard":     {header: "Bearer abc.def.ghi", token: "abc.def.ghi", ok: true},
		"lower scheme": {header: "bearer abc", token: "abc", ok: true},
		"basic":        {header: "Basic dXNlcjpwYXNz", ok: false},
		"empty token":  {header: "Bearer   ", ok: false},
		"no scheme":    {header: "abc.def.ghi", ok: false},
		"missing":      {header: "", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := BearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}

func TestResolveFailsOpen(t *testing.T) {
	h := newAuthHarness(t, seededUser(t))
	ctx := context.Background()

	login, err := h.svc.Login(ctx, models.LoginRequest{PhoneNumber: "0912345678", Password: "secret123"})
	require.NoError(t, err)

	principal := h.resolver.Resolve(ctx, bearer(login.AccessToken))
	require.NotNil(t, principal)
	assert.Equal(t, "user-1", principal.User.ID)
	assert.Equal(t, login.SessionID, principal.SessionID)

	assert.Nil(t, h.resolver.Resolve(ctx, ""))
	assert.Nil(t, h.resolver.Resolve(ctx, "Token "+login.AccessToken))
	assert.Nil(t, h.resolver.Resolve(ctx, bearer("not-a-token")))
	assert.Nil(t, h.resolver.Resolve(ctx, bearer(login.RefreshToken)))

	expired, err := h.tokens.Issue(TokenSubject{UserID: "user-1", SessionID: login.SessionID}, models.TokenClassAccess, 0)
	require.NoError(t, err)
	assert.Nil(t, h.resolver.Resolve(ctx, bearer(expired.Value)))
}

func TestResolveRejectsSupersededAccessToken(t *testing.T) {
	h := newAuthHarness(t, seededUser(t))
	ctx := context.Background()

	login, err := h.svc.Login(ctx, models.LoginRequest{PhoneNumber: "0912345678", Password: "secret123"})
	require.NoError(t, err)
	refreshed, err := h.svc.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)

	assert.Nil(t, h.resolver.Resolve(ctx, bearer(login.AccessToken)))
	assert.NotNil(t, h.resolver.Resolve(ctx, bearer(refreshed.AccessToken)))
}

func TestResolveProceedsAnonymouslyWhenUserIsGone(t *testing.T) {
	h := newAuthHarness(t, seededUser(t))
	ctx := context.Background()

	login, err := h.svc.Login(ctx, models.LoginRequest{PhoneNumber: "0912345678", Password: "secret123"})
	require.NoError(t, err)

	delete(h.users.byID, "user-1")
	assert.Nil(t, h.resolver.Resolve(ctx, bearer(login.AccessToken)))
}

func TestResolveSwallowsStoreFailures(t *testing.T) {
	h := newAuthHarness(t, seededUser(t))
	ctx := context.Background()

	login, err := h.svc.Login(ctx, models.LoginRequest{PhoneNumber: "0912345678", Password: "secret123"})
	require.NoError(t, err)

	h.users.findErr = errStoreDown
	assert.Nil(t, h.resolver.Resolve(ctx, bearer(login.AccessToken)))
}

func TestResolveIgnoresTokenForeignToSession(t *testing.T) {
	h := newAuthHarness(t, seededUser(t))
	ctx := context.Background()

	login, err := h.svc.Login(ctx, models.LoginRequest{PhoneNumber: "0912345678", Password: "secret123"})
	require.NoError(t, err)

	forged, err := h.tokens.Issue(TokenSubject{UserID: "user-1", SessionID: login.SessionID}, models.TokenClassAccess, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, h.resolver.Resolve(ctx, bearer(forged.Value)))
}
