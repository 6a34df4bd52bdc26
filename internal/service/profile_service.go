package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	"github.com/noah-isme/gvn-booking-api/internal/repository"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
	"github.com/noah-isme/gvn-booking-api/pkg/storage"
)

const (
	namespaceAvatars = "avatars"
	namespaceCCCD    = "documents/cccd"
	namespaceHealth  = "documents/health"
)

func profileCacheKey(userID string) string {
	return "profile:" + userID
}

type profileUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateAvatar(ctx context.Context, id string, path *string) error
	UpdatePassword(ctx context.Context, exec sqlx.ExtContext, id, passwordHash string) error
	SetPartnerFlag(ctx context.Context, exec sqlx.ExtContext, id string, hasProfile bool) error
}

type profileSessionRepository interface {
	DeactivateAllForUser(ctx context.Context, exec sqlx.ExtContext, userID, keepSessionID string) (int64, error)
}

type partnerProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.PartnerProfile, error)
	Create(ctx context.Context, exec sqlx.ExtContext, profile *models.PartnerProfile) error
	Update(ctx context.Context, profile *models.PartnerProfile) error
}

type profileCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// ProfileServiceDeps groups the collaborators of ProfileService.
type ProfileServiceDeps struct {
	Tx       txProvider
	Users    profileUserRepository
	Sessions profileSessionRepository
	Partners partnerProfileRepository
	Files    storage.FileStore
	Hasher   PasswordHasher
	Cache    profileCache
	Cleanup  fileScheduler
	Audit    auditLogWriter
	Signer   *storage.DownloadSigner
}

// ProfileConfig shapes profile responses and upload limits.
type ProfileConfig struct {
	PublicPrefix string
	MaxFileSize  int64
	CacheTTL     time.Duration
}

// ProfileService manages the signed-in user's profile, avatar, password and
// partner application.
type ProfileService struct {
	tx       txProvider
	users    profileUserRepository
	sessions profileSessionRepository
	partners partnerProfileRepository
	files    storage.FileStore
	hasher   PasswordHasher
	cache    profileCache
	cleanup  fileScheduler
	signer   *storage.DownloadSigner
	audit    auditTrail
	validate *validator.Validate
	logger   *zap.Logger
	config   ProfileConfig
}

// NewProfileService constructs the service.
func NewProfileService(deps ProfileServiceDeps, validate *validator.Validate, logger *zap.Logger, cfg ProfileConfig) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		tx:       deps.Tx,
		users:    deps.Users,
		sessions: deps.Sessions,
		partners: deps.Partners,
		files:    deps.Files,
		hasher:   deps.Hasher,
		cache:    deps.Cache,
		cleanup:  deps.Cleanup,
		signer:   deps.Signer,
		audit:    auditTrail{repo: deps.Audit, logger: logger},
		validate: validate,
		logger:   logger,
		config:   cfg,
	}
}

// GetProfile returns the user summary, served from cache when possible.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.UserSummary, error) {
	var cached models.UserSummary
	if s.cache != nil && s.cache.Get(ctx, profileCacheKey(userID), &cached) {
		return &cached, nil
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summary(ctx, user)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, profileCacheKey(userID), summary, s.config.CacheTTL)
	}
	return summary, nil
}

// UpdateProfile applies the non-nil fields of req. An empty string clears
// the field.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.UserSummary, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = trimmed(*req.FullName)
	}
	if req.Gender != nil {
		user.Gender = trimmed(*req.Gender)
	}
	if req.Address != nil {
		user.Address = trimmed(*req.Address)
	}
	if req.Birthday != nil {
		birthday, err := parseBirthday(*req.Birthday)
		if err != nil {
			return nil, err
		}
		user.Birthday = birthday
	}
	if req.Email != nil {
		email := trimmed(*req.Email)
		if email != nil {
			owner, err := s.users.FindByEmail(ctx, *email)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
			}
			if owner != nil && owner.ID != user.ID {
				return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
			}
		}
		user.Email = email
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	s.invalidate(ctx, userID)
	return s.summary(ctx, user)
}

// UpdateAvatar stores a new avatar and releases the previous one.
func (s *ProfileService) UpdateAvatar(ctx context.Context, userID string, file models.UploadedFile) (*models.UserSummary, error) {
	if err := s.checkUpload(&file, "avatar"); err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	path, err := s.files.Store(ctx, file.Name, file.Data, namespaceAvatars)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store avatar")
	}
	if err := s.users.UpdateAvatar(ctx, userID, &path); err != nil {
		s.discard(path)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update avatar")
	}

	if user.AvatarPath != nil {
		s.discard(*user.AvatarPath)
	}
	user.AvatarPath = &path
	s.invalidate(ctx, userID)
	return s.summary(ctx, user)
}

// DeleteAvatar clears the avatar and releases the stored file.
func (s *ProfileService) DeleteAvatar(ctx context.Context, userID string) (*models.UserSummary, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AvatarPath == nil {
		return s.summary(ctx, user)
	}

	if err := s.users.UpdateAvatar(ctx, userID, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear avatar")
	}
	s.discard(*user.AvatarPath)
	user.AvatarPath = nil
	s.invalidate(ctx, userID)
	return s.summary(ctx, user)
}

// ChangePassword verifies the current password, stores the new hash and
// deactivates every other session of the user.
func (s *ProfileService) ChangePassword(ctx context.Context, principal *models.Principal, req models.ChangePasswordRequest, client models.ClientInfo) (err error) {
	if principal == nil || principal.User == nil {
		return appErrors.ErrNotAuthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.loadUser(ctx, principal.User.ID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		return appErrors.ErrInvalidPassword
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
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

	if err = s.users.UpdatePassword(ctx, tx, user.ID, hash); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	revoked, err := s.sessions.DeactivateAllForUser(ctx, tx, user.ID, principal.SessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit password change")
	}

	s.audit.record(ctx, models.AuditActionPasswordChange, user.ID, principal.SessionID, client, map[string]interface{}{"sessions_revoked": revoked})
	s.logger.Info("password changed", zap.String("user_id", user.ID), zap.Int64("sessions_revoked", revoked))
	return nil
}

// RegisterPartner files the user's partner application. Each user may own
// one partner profile.
func (s *ProfileService) RegisterPartner(ctx context.Context, userID string, form models.PartnerApplication, docs models.PartnerDocuments) (summary *models.UserSummary, err error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid partner application")
	}
	if docs.CCCDFront == nil || docs.CCCDBack == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cccd_front and cccd_back are required")
	}
	if err := s.checkDocuments(docs); err != nil {
		return nil, err
	}
	birthday, err := parseBirthday(form.Birthday)
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partner profile")
	}
	if existing != nil || user.HasPartnerProfile {
		return nil, appErrors.Clone(appErrors.ErrConflict, "partner profile already exists")
	}

	profile := &models.PartnerProfile{
		UserID:            userID,
		FullName:          strings.TrimSpace(form.FullName),
		Gender:            trimmed(form.Gender),
		Birthday:          birthday,
		Address:           trimmed(form.Address),
		CCCD:              form.CCCD,
		YearsOfExperience: form.YearsOfExperience,
		Status:            models.PartnerStatusPending,
	}

	stored, err := s.storeDocuments(ctx, profile, docs)
	if err != nil {
		s.discard(stored...)
		return nil, err
	}
	defer func() {
		if err != nil {
			s.discard(stored...)
		}
	}()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.partners.Create(ctx, tx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "partner profile already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create partner profile")
	}
	if err = s.users.SetPartnerFlag(ctx, tx, userID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag partner profile")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit partner application")
	}

	user.HasPartnerProfile = true
	s.invalidate(ctx, userID)
	s.logger.Info("partner application filed", zap.String("user_id", userID), zap.String("profile_id", profile.ID))
	return summarize(user, profile, s.config.PublicPrefix), nil
}

// UpdatePartnerProfile rewrites the application, replaces any documents
// supplied and sends the profile back to review.
func (s *ProfileService) UpdatePartnerProfile(ctx context.Context, userID string, form models.PartnerApplication, docs models.PartnerDocuments) (*models.UserSummary, error) {
	profile, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partner profile")
	}
	if profile == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "partner profile not found")
	}
	if err := s.validate.Struct(form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid partner application")
	}
	if err := s.checkDocuments(docs); err != nil {
		return nil, err
	}
	birthday, err := parseBirthday(form.Birthday)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	previous := *profile
	previous.HealthCertPaths = append([]string(nil), profile.HealthCertPaths...)

	profile.FullName = strings.TrimSpace(form.FullName)
	profile.Gender = trimmed(form.Gender)
	profile.Birthday = birthday
	profile.Address = trimmed(form.Address)
	profile.CCCD = form.CCCD
	profile.YearsOfExperience = form.YearsOfExperience
	profile.Status = models.PartnerStatusPending

	stored, err := s.storeDocuments(ctx, profile, docs)
	if err != nil {
		s.discard(stored...)
		return nil, err
	}
	if err := s.partners.Update(ctx, profile); err != nil {
		s.discard(stored...)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update partner profile")
	}

	s.discard(replacedPaths(&previous, profile)...)
	s.invalidate(ctx, userID)
	return summarize(user, profile, s.config.PublicPrefix), nil
}

// PartnerDocuments returns short-lived download links for the caller's
// partner documents.
func (s *ProfileService) PartnerDocuments(ctx context.Context, userID string) ([]models.DocumentLink, error) {
	if s.signer == nil {
		return nil, appErrors.Wrap(errors.New("download signer not configured"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "document links unavailable")
	}
	profile, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partner profile")
	}
	if profile == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "partner profile not found")
	}

	links := make([]models.DocumentLink, 0, 2+len(profile.HealthCertPaths))
	add := func(kind models.DocumentKind, path string) error {
		if path == "" {
			return nil
		}
		signed, err := s.signer.Sign(userID, path)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document link")
		}
		links = append(links, models.DocumentLink{
			Kind:      kind,
			URL:       storage.PublicURL(s.config.PublicPrefix, path) + "?token=" + url.QueryEscape(signed.Token),
			ExpiresAt: signed.ExpiresAt,
		})
		return nil
	}

	if profile.CCCDFrontPath != nil {
		if err := add(models.DocumentCCCDFront, *profile.CCCDFrontPath); err != nil {
			return nil, err
		}
	}
	if profile.CCCDBackPath != nil {
		if err := add(models.DocumentCCCDBack, *profile.CCCDBackPath); err != nil {
			return nil, err
		}
	}
	for _, path := range profile.HealthCertPaths {
		if err := add(models.DocumentHealthCertificate, path); err != nil {
			return nil, err
		}
	}
	return links, nil
}

// storeDocuments uploads the supplied documents and points profile at them.
// It returns every path stored so far, even on failure.
func (s *ProfileService) storeDocuments(ctx context.Context, profile *models.PartnerProfile, docs models.PartnerDocuments) ([]string, error) {
	var stored []string
	put := func(file *models.UploadedFile, namespace string) (string, error) {
		path, err := s.files.Store(ctx, file.Name, file.Data, namespace)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
		}
		stored = append(stored, path)
		return path, nil
	}

	if docs.CCCDFront != nil {
		path, err := put(docs.CCCDFront, namespaceCCCD)
		if err != nil {
			return stored, err
		}
		profile.CCCDFrontPath = &path
	}
	if docs.CCCDBack != nil {
		path, err := put(docs.CCCDBack, namespaceCCCD)
		if err != nil {
			return stored, err
		}
		profile.CCCDBackPath = &path
	}
	if len(docs.HealthCertificates) > 0 {
		paths := make([]string, 0, len(docs.HealthCertificates))
		for i := range docs.HealthCertificates {
			path, err := put(&docs.HealthCertificates[i], namespaceHealth)
			if err != nil {
				return stored, err
			}
			paths = append(paths, path)
		}
		profile.HealthCertPaths = paths
	}
	return stored, nil
}

func (s *ProfileService) checkDocuments(docs models.PartnerDocuments) error {
	if docs.CCCDFront != nil {
		if err := s.checkUpload(docs.CCCDFront, "cccd_front"); err != nil {
			return err
		}
	}
	if docs.CCCDBack != nil {
		if err := s.checkUpload(docs.CCCDBack, "cccd_back"); err != nil {
			return err
		}
	}
	for i := range docs.HealthCertificates {
		if err := s.checkUpload(&docs.HealthCertificates[i], "health_certificates"); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProfileService) checkUpload(file *models.UploadedFile, field string) error {
	if file == nil || len(file.Data) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is empty", field))
	}
	if s.config.MaxFileSize > 0 && int64(len(file.Data)) > s.config.MaxFileSize {
		return appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("%s exceeds %d bytes", field, s.config.MaxFileSize))
	}
	return nil
}

func (s *ProfileService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return user, nil
}

func (s *ProfileService) summary(ctx context.Context, user *models.User) (*models.UserSummary, error) {
	var partner *models.PartnerProfile
	if user.HasPartnerProfile {
		var err error
		partner, err = s.partners.FindByUserID(ctx, user.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partner profile")
		}
	}
	return summarize(user, partner, s.config.PublicPrefix), nil
}

func (s *ProfileService) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, profileCacheKey(userID))
	}
}

// discard releases stored files in the background, or inline when no
// cleanup queue is configured.
func (s *ProfileService) discard(paths ...string) {
	if len(paths) == 0 {
		return
	}
	if s.cleanup != nil {
		s.cleanup.Schedule(paths...)
		return
	}
	for _, p := range paths {
		if !s.files.Delete(context.Background(), p) {
			s.logger.Warn("failed to delete stored file", zap.String("path", p))
		}
	}
}

// replacedPaths lists the files of before that after no longer references.
func replacedPaths(before, after *models.PartnerProfile) []string {
	keep := make(map[string]struct{})
	for _, p := range after.FilePaths() {
		keep[p] = struct{}{}
	}
	var out []string
	for _, p := range before.FilePaths() {
		if _, ok := keep[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func parseBirthday(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(models.BirthdayLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birthday must use the yyyy/MM/dd format")
	}
	return &t, nil
}

func trimmed(v string) *string {
	return optional(strings.TrimSpace(v))
}
