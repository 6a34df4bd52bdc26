package service

import (
	"context"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	"github.com/noah-isme/gvn-booking-api/internal/repository"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
	"github.com/noah-isme/gvn-booking-api/pkg/storage"
)

type userStore interface {
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// UserService verifies credentials and creates accounts.
type UserService struct {
	users  userStore
	hasher PasswordHasher
	logger *zap.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

// fallbackHash is a well-formed cost-10 bcrypt string compared against when a
// placeholder cannot be generated.
const fallbackHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// NewUserService constructs the service.
func NewUserService(users userStore, hasher PasswordHasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hasher: hasher, logger: logger}
}

// Authenticate returns the user whose phone and password match, or nil when
// they do not. Unknown phones and wrong passwords are indistinguishable to
// the caller; an error means the lookup itself failed.
func (s *UserService) Authenticate(ctx context.Context, phone, password string) (*models.User, error) {
	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user == nil {
		s.hasher.Verify(password, s.placeholderHash())
		return nil, nil
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

// Create registers a new account with a hashed password. exec may be a
// transaction; nil uses the pool.
func (s *UserService) Create(ctx context.Context, exec sqlx.ExtContext, phone, password string, userType models.UserType) (*models.User, error) {
	existing, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if existing != nil {
		return nil, appErrors.ErrAlreadyExists
	}

	if userType == "" {
		userType = models.UserTypeCustomer
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{PhoneNumber: phone, PasswordHash: hash, UserType: userType}
	if err := s.users.Create(ctx, exec, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.ErrAlreadyExists
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// placeholderHash is compared against when the phone is unknown so both
// branches of Authenticate pay for one bcrypt verification. A failed
// generation is retried on the next call.
func (s *UserService) placeholderHash() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash != "" {
		return s.dummyHash
	}
	hash, err := s.hasher.Hash("placeholder-password")
	if err != nil || hash == "" {
		s.logger.Warn("failed to prepare placeholder hash", zap.Error(err))
		return fallbackHash
	}
	s.dummyHash = hash
	return hash
}

// summarize projects a user and optional partner profile into the public
// summary. Stored paths become URLs under publicPrefix.
func summarize(user *models.User, partner *models.PartnerProfile, publicPrefix string) *models.UserSummary {
	if user == nil {
		return nil
	}
	summary := &models.UserSummary{
		ID:                user.ID,
		FullName:          user.FullName,
		Gender:            user.Gender,
		Email:             user.Email,
		Address:           user.Address,
		Phone:             user.PhoneNumber,
		UserType:          user.UserType,
		HasPartnerProfile: user.HasPartnerProfile,
	}
	if user.Birthday != nil {
		formatted := user.Birthday.Format(models.BirthdayLayout)
		summary.Birthday = &formatted
	}
	if user.AvatarPath != nil && *user.AvatarPath != "" {
		url := storage.PublicURL(publicPrefix, *user.AvatarPath)
		summary.AvatarURL = &url
	}
	if partner != nil {
		summary.PartnerProfile = &models.PartnerProfileSummary{ProfileStatus: partner.Status}
	}
	return summary
}
