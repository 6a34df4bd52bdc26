package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
	"github.com/noah-isme/gvn-booking-api/pkg/logger"
	"github.com/noah-isme/gvn-booking-api/pkg/security"
)

const tokenTypeBearer = "Bearer"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type credentialAuthenticator interface {
	Authenticate(ctx context.Context, phone, password string) (*models.User, error)
	Create(ctx context.Context, exec sqlx.ExtContext, phone, password string, userType models.UserType) (*models.User, error)
}

type authUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
}

type sessionRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
	FindByRefreshToken(ctx context.Context, refreshHash string) (*models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	Rotate(ctx context.Context, rotation models.SessionRotation) (bool, error)
	Deactivate(ctx context.Context, userID, sessionID string) (bool, error)
	DeactivateAllForUser(ctx context.Context, exec sqlx.ExtContext, userID, keepSessionID string) (int64, error)
	DeleteAllForUser(ctx context.Context, exec sqlx.ExtContext, userID string) (int64, error)
}

type authPartnerRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.PartnerProfile, error)
	DeleteByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) error
}

type fileScheduler interface {
	Schedule(paths ...string)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// AuthServiceDeps groups the collaborators of AuthService.
type AuthServiceDeps struct {
	Tx       txProvider
	Accounts credentialAuthenticator
	Users    authUserRepository
	Sessions sessionRepository
	Partners authPartnerRepository
	Tokens   *TokenService
	Audit    auditLogWriter
	Cleanup  fileScheduler
	Cache    cacheInvalidator
	Metrics  *MetricsService
}

// AuthConfig holds settings that shape auth responses.
type AuthConfig struct {
	PublicPrefix string
}

// AuthService runs the login, signup, refresh, logout and account deletion
// workflows over sessions.
type AuthService struct {
	tx       txProvider
	accounts credentialAuthenticator
	users    authUserRepository
	sessions sessionRepository
	partners authPartnerRepository
	tokens   *TokenService
	audit    auditTrail
	cleanup  fileScheduler
	cache    cacheInvalidator
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	config   AuthConfig
	now      func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(deps AuthServiceDeps, validate *validator.Validate, logger *zap.Logger, cfg AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		tx:       deps.Tx,
		accounts: deps.Accounts,
		users:    deps.Users,
		sessions: deps.Sessions,
		partners: deps.Partners,
		tokens:   deps.Tokens,
		audit:    auditTrail{repo: deps.Audit, logger: logger},
		cleanup:  deps.Cleanup,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		validate: validate,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
}

// Login verifies credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (resp *models.LoginResponse, err error) {
	defer func() { s.metrics.RecordAuth("login", err) }()

	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.accounts.Authenticate(ctx, req.PhoneNumber, req.Password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logger.Info("login rejected", zap.String("phone", logger.MaskPhone(req.PhoneNumber)))
		return nil, appErrors.ErrInvalidCredentials
	}

	session, pair, err := s.openSession(ctx, nil, user, req.DeviceInfo, req.Client)
	if err != nil {
		return nil, err
	}

	var partner *models.PartnerProfile
	if user.HasPartnerProfile {
		partner, err = s.partners.FindByUserID(ctx, user.ID)
		if err != nil {
			s.logger.Warn("failed to load partner profile for login", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	s.audit.record(ctx, models.AuditActionLogin, user.ID, session.ID, req.Client, nil)
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return s.buildResponse(user, partner, session.ID, pair), nil
}

// Register creates an account and signs it in. The user row and its first
// session are written in one transaction.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (resp *models.LoginResponse, err error) {
	defer func() { s.metrics.RecordAuth("signup", err) }()

	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}
	if req.UserType == "" {
		req.UserType = models.UserTypeCustomer
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	user, err := s.accounts.Create(ctx, tx, req.PhoneNumber, req.Password, req.UserType)
	if err != nil {
		return nil, err
	}

	session, pair, err := s.openSession(ctx, tx, user, req.DeviceInfo, req.Client)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit signup")
	}

	s.audit.record(ctx, models.AuditActionRegister, user.ID, session.ID, req.Client, map[string]interface{}{"user_type": user.UserType})
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("phone", logger.MaskPhone(user.PhoneNumber)))
	return s.buildResponse(user, nil, session.ID, pair), nil
}

// Refresh exchanges a refresh token for a new pair on the same session. The
// stored pair is replaced only if it still holds the presented token.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (resp *models.LoginResponse, err error) {
	defer func() { s.metrics.RecordAuth("refresh", err) }()

	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	claims, err := s.tokens.Decode(req.RefreshToken)
	if err != nil || claims.Class != models.TokenClassRefresh || s.tokens.Expired(claims) {
		return nil, appErrors.ErrInvalidToken
	}

	presentedHash := security.HashToken(req.RefreshToken)
	session, err := s.sessions.FindByRefreshToken(ctx, presentedHash)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session == nil {
		return nil, appErrors.ErrSessionNotFound
	}
	if !session.IsActive {
		return nil, appErrors.ErrSessionInactive
	}
	if session.RefreshExpired(s.now()) {
		return nil, appErrors.ErrRefreshExpired
	}
	if session.UserID != claims.Subject || (claims.SessionID != "" && claims.SessionID != session.ID) {
		return nil, appErrors.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user == nil {
		return nil, appErrors.ErrInvalidToken
	}

	pair, err := s.tokens.IssuePair(TokenSubject{UserID: user.ID, PhoneNumber: user.PhoneNumber, SessionID: session.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	rotated, err := s.sessions.Rotate(ctx, models.SessionRotation{
		SessionID:           session.ID,
		PreviousRefreshHash: presentedHash,
		AccessTokenHash:     security.HashToken(pair.Access.Value),
		AccessExpiresAt:     pair.Access.ExpiresAt,
		RefreshTokenHash:    security.HashToken(pair.Refresh.Value),
		RefreshExpiresAt:    pair.Refresh.ExpiresAt,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate session")
	}
	if !rotated {
		s.logger.Warn("refresh lost rotation race", zap.String("session_id", session.ID))
		return nil, appErrors.ErrInvalidToken
	}

	var partner *models.PartnerProfile
	if user.HasPartnerProfile {
		if partner, err = s.partners.FindByUserID(ctx, user.ID); err != nil {
			s.logger.Warn("failed to load partner profile for refresh", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	s.audit.record(ctx, models.AuditActionRefresh, user.ID, session.ID, req.Client, nil)
	return s.buildResponse(user, partner, session.ID, pair), nil
}

// Logout deactivates one session of the caller. An empty sessionID targets
// the caller's current session.
func (s *AuthService) Logout(ctx context.Context, principal *models.Principal, sessionID string, client models.ClientInfo) (err error) {
	defer func() { s.metrics.RecordAuth("logout", err) }()

	if principal == nil || principal.User == nil {
		return appErrors.ErrNotAuthenticated
	}
	if sessionID == "" {
		sessionID = principal.SessionID
	}
	// Session ids are UUIDs; anything else cannot name a stored session.
	if err := s.validate.Struct(models.LogoutRequest{SessionID: sessionID}); err != nil || sessionID == "" {
		return appErrors.ErrSessionNotFound
	}

	ok, err := s.sessions.Deactivate(ctx, principal.User.ID, sessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate session")
	}
	if !ok {
		return appErrors.ErrSessionNotFound
	}

	s.audit.record(ctx, models.AuditActionLogout, principal.User.ID, sessionID, client, nil)
	s.logger.Info("session logged out", zap.String("user_id", principal.User.ID), zap.String("session_id", sessionID))
	return nil
}

// LogoutAll deactivates every session of the caller and returns how many
// were still active.
func (s *AuthService) LogoutAll(ctx context.Context, principal *models.Principal, client models.ClientInfo) (count int64, err error) {
	defer func() { s.metrics.RecordAuth("logout_all", err) }()

	if principal == nil || principal.User == nil {
		return 0, appErrors.ErrNotAuthenticated
	}
	count, err = s.sessions.DeactivateAllForUser(ctx, nil, principal.User.ID, "")
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate sessions")
	}

	s.audit.record(ctx, models.AuditActionLogoutAll, principal.User.ID, principal.SessionID, client, map[string]interface{}{"sessions": count})
	return count, nil
}

// ListSessions returns the caller's sessions, marking the current one.
func (s *AuthService) ListSessions(ctx context.Context, principal *models.Principal) ([]models.SessionView, error) {
	if principal == nil || principal.User == nil {
		return nil, appErrors.ErrNotAuthenticated
	}
	sessions, err := s.sessions.ListByUser(ctx, principal.User.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	views := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, models.SessionView{
			ID:               session.ID,
			DeviceInfo:       session.DeviceInfo,
			Platform:         session.Platform,
			IPAddress:        session.IPAddress,
			IsActive:         session.IsActive,
			Current:          session.ID == principal.SessionID,
			AccessExpiresAt:  session.AccessExpiresAt,
			RefreshExpiresAt: session.RefreshExpiresAt,
			CreatedAt:        session.CreatedAt,
			UpdatedAt:        session.UpdatedAt,
		})
	}
	return views, nil
}

// DeleteAccount removes the caller's sessions, partner profile and user row
// in that order inside one transaction. Stored files are queued for deletion
// after commit and never block it.
func (s *AuthService) DeleteAccount(ctx context.Context, principal *models.Principal, client models.ClientInfo) (err error) {
	if principal == nil || principal.User == nil {
		return appErrors.ErrNotAuthenticated
	}
	userID := principal.User.ID

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	partner, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partner profile")
	}

	var files []string
	if user.AvatarPath != nil {
		files = append(files, *user.AvatarPath)
	}
	if partner != nil {
		files = append(files, partner.FilePaths()...)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	removed, err := s.sessions.DeleteAllForUser(ctx, tx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sessions")
	}
	if err = s.partners.DeleteByUserID(ctx, tx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete partner profile")
	}
	deleted, err := s.users.Delete(ctx, tx, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if !deleted {
		err = appErrors.Clone(appErrors.ErrNotFound, "user not found")
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit account deletion")
	}

	if s.cleanup != nil {
		s.cleanup.Schedule(files...)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, profileCacheKey(userID))
	}

	s.audit.record(ctx, models.AuditActionAccountDelete, userID, principal.SessionID, client, map[string]interface{}{
		"sessions_removed": removed,
		"files_scheduled":  len(files),
	})
	s.logger.Info("account deleted", zap.String("user_id", userID), zap.Int64("sessions_removed", removed))
	return nil
}

func (s *AuthService) openSession(ctx context.Context, exec sqlx.ExtContext, user *models.User, deviceInfo string, client models.ClientInfo) (*models.Session, models.TokenPair, error) {
	sessionID := uuid.NewString()
	pair, err := s.tokens.IssuePair(TokenSubject{UserID: user.ID, PhoneNumber: user.PhoneNumber, SessionID: sessionID})
	if err != nil {
		return nil, models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	session := &models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		AccessTokenHash:  security.HashToken(pair.Access.Value),
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshTokenHash: security.HashToken(pair.Refresh.Value),
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
		IsActive:         true,
		DeviceInfo:       optional(deviceInfo),
		Platform:         optional(client.Platform),
		IPAddress:        optional(client.IP),
		UserAgent:        optional(client.UserAgent),
	}
	if err := s.sessions.Create(ctx, exec, session); err != nil {
		return nil, models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.metrics.RecordSessionOpened()
	return session, pair, nil
}

func (s *AuthService) buildResponse(user *models.User, partner *models.PartnerProfile, sessionID string, pair models.TokenPair) *models.LoginResponse {
	now := s.now()
	return &models.LoginResponse{
		AccessToken:      pair.Access.Value,
		TokenType:        tokenTypeBearer,
		ExpiresIn:        secondsUntil(now, pair.Access.ExpiresAt),
		ExpiresAt:        pair.Access.ExpiresAt.Unix(),
		RefreshToken:     pair.Refresh.Value,
		RefreshExpiresIn: secondsUntil(now, pair.Refresh.ExpiresAt),
		RefreshExpiresAt: pair.Refresh.ExpiresAt.Unix(),
		SessionID:        sessionID,
		User:             summarize(user, partner, s.config.PublicPrefix),
	}
}

func secondsUntil(now, t time.Time) int64 {
	d := t.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}
