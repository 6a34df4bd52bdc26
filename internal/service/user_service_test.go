package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gvn-booking-api/internal/models"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
)

func TestAuthenticateMatchesOnlyCorrectPassword(t *testing.T) {
	users := newMemoryUsers(&models.User{ID: "user-1", PhoneNumber: "0912345678", PasswordHash: mustHash(t, "secret123"), UserType: models.UserTypeCustomer})
	svc := NewUserService(users, testHasher(), nil)

	user, err := svc.Authenticate(context.Background(), "0912345678", "secret123")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)

	wrong, err := svc.Authenticate(context.Background(), "0912345678", "nope")
	require.NoError(t, err)
	unknown, err := svc.Authenticate(context.Background(), "0999999999", "secret123")
	require.NoError(t, err)

	assert.Nil(t, wrong)
	assert.Nil(t, unknown)
	assert.Equal(t, wrong, unknown)
}

func TestAuthenticateRejectsEmptyStoredHash(t *testing.T) {
	users := newMemoryUsers(&models.User{ID: "user-1", PhoneNumber: "0912345678"})
	svc := NewUserService(users, testHasher(), nil)

	user, err := svc.Authenticate(context.Background(), "0912345678", "")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestAuthenticateSurfacesStoreFailure(t *testing.T) {
	users := newMemoryUsers()
	users.findErr = errStoreDown
	svc := NewUserService(users, testHasher(), nil)

	_, err := svc.Authenticate(context.Background(), "0912345678", "secret123")
	require.Error(t, err)
	assert.True(t, appErrors.IsInternal(err))
	assert.ErrorIs(t, err, errStoreDown)
}

type flakyHasher struct {
	hashErr  error
	hashed   int
	verified []string
}

func (f *flakyHasher) Hash(plain string) (string, error) {
	f.hashed++
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return "$2a$04$" + plain, nil
}

func (f *flakyHasher) Verify(_, hash string) bool {
	f.verified = append(f.verified, hash)
	return false
}

func TestAuthenticateUnknownPhoneStillComparesWhenPlaceholderFails(t *testing.T) {
	hasher := &flakyHasher{hashErr: errors.New("entropy exhausted")}
	svc := NewUserService(newMemoryUsers(), hasher, nil)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "0999999999", "secret123")
	require.NoError(t, err)
	assert.Nil(t, user)
	require.Len(t, hasher.verified, 1)
	assert.Equal(t, fallbackHash, hasher.verified[0])

	hasher.hashErr = nil
	_, err = svc.Authenticate(ctx, "0999999999", "secret123")
	require.NoError(t, err)
	assert.Equal(t, 2, hasher.hashed)
	assert.Equal(t, "$2a$04$placeholder-password", hasher.verified[1])

	_, err = svc.Authenticate(ctx, "0999999999", "secret123")
	require.NoError(t, err)
	assert.Equal(t, 2, hasher.hashed)
}

func TestFallbackHashIsComparable(t *testing.T) {
	cost, err := bcrypt.Cost([]byte(fallbackHash))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)
	assert.False(t, testHasher().Verify("secret123", fallbackHash))
}

func TestCreateHashesPassword(t *testing.T) {
	users := newMemoryUsers()
	svc := NewUserService(users, testHasher(), nil)

	user, err := svc.Create(context.Background(), nil, "0912345678", "secret123", "")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.UserTypeCustomer, user.UserType)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	assert.True(t, testHasher().Verify("secret123", user.PasswordHash))
}

func TestCreateRejectsTakenPhone(t *testing.T) {
	users := newMemoryUsers(&models.User{ID: "user-1", PhoneNumber: "0912345678"})
	svc := NewUserService(users, testHasher(), nil)

	_, err := svc.Create(context.Background(), nil, "0912345678", "secret123", models.UserTypePartner)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyExists))
}

func TestSummarizeFormatsBirthdayAndAvatar(t *testing.T) {
	birthday := time.Date(1995, 4, 9, 0, 0, 0, 0, time.UTC)
	avatar := "avatars/a.png"
	name := "Lan"
	user := &models.User{ID: "user-1", PhoneNumber: "0912345678", FullName: &name, Birthday: &birthday, AvatarPath: &avatar, HasPartnerProfile: true}

	summary := summarize(user, &models.PartnerProfile{Status: models.PartnerStatusPending}, "/api/v1/files/")

	require.NotNil(t, summary.Birthday)
	assert.Equal(t, "1995/04/09", *summary.Birthday)
	require.NotNil(t, summary.AvatarURL)
	assert.Equal(t, "/api/v1/files/avatars/a.png", *summary.AvatarURL)
	require.NotNil(t, summary.PartnerProfile)
	assert.Equal(t, models.PartnerStatusPending, summary.PartnerProfile.ProfileStatus)
	assert.Equal(t, "0912345678", summary.Phone)
}
