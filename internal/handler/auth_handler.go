package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
	"github.com/noah-isme/gvn-booking-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error)
	Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context, principal *models.Principal, sessionID string, client models.ClientInfo) error
	LogoutAll(ctx context.Context, principal *models.Principal, client models.ClientInfo) (int64, error)
	ListSessions(ctx context.Context, principal *models.Principal) ([]models.SessionView, error)
}

type profileReader interface {
	GetProfile(ctx context.Context, userID string) (*models.UserSummary, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service  authService
	profiles profileReader
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, profiles profileReader) *AuthHandler {
	return &AuthHandler{service: svc, profiles: profiles}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by phone number and password, opening a new session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param X-Platform header string false "Client platform"
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.Client = clientInfo(c)

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, res, "login successful")
}

// Signup godoc
// @Summary Register account
// @Description Create an account and sign it in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param X-Platform header string false "Client platform"
// @Param payload body models.RegisterRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signup payload"))
		return
	}
	req.Client = clientInfo(c)

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res, "registration successful")
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange a refresh token for a new token pair on the same session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/refresh-token [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload"))
		return
	}
	req.Client = clientInfo(c)

	res, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, res, "token refreshed")
}

// Logout godoc
// @Summary Logout
// @Description Revoke one of the caller's sessions, defaulting to the current one
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.LogoutRequest false "Session to revoke"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid logout payload"))
		return
	}

	if err := h.service.Logout(c.Request.Context(), principal, req.SessionID, clientInfo(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, nil, "logged out")
}

// LogoutAll godoc
// @Summary Logout everywhere
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	count, err := h.service.LogoutAll(c.Request.Context(), principal, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"revoked": count}, "all sessions revoked")
}

// Sessions godoc
// @Summary List sessions
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, "", map[string]interface{}{"total": len(sessions)})
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	profile, err := h.profiles.GetProfile(c.Request.Context(), principal.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile, "")
}
