package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gvn-booking-api/internal/models"
)

const userColumns = `id, phone_number, password_hash, full_name, email, gender, birthday, address, avatar_path, user_type, has_partner_profile, created_at, updated_at`

// UserRepository provides database access for accounts. Lookups return
// (nil, nil) when no row matches.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByPhone returns a user by login phone number.
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, "find user by phone", `SELECT `+userColumns+` FROM users WHERE phone_number = $1 LIMIT 1`, phone)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "find user by id", `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
}

// FindByEmail returns a user by email, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "find user by email", `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`, email)
}

func (r *UserRepository) findOne(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// Create inserts a new user. A taken phone number yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, phone_number, password_hash, full_name, email, gender, birthday, address, avatar_path, user_type, has_partner_profile, created_at, updated_at)
VALUES (:id, :phone_number, :password_hash, :full_name, :email, :gender, :birthday, :address, :avatar_path, :user_type, :has_partner_profile, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile writes the editable profile columns.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, email = :email, gender = :gender, birthday = :birthday, address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user profile: %w", ErrDuplicate)
		}
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// UpdateAvatar sets or clears the stored avatar path.
func (r *UserRepository) UpdateAvatar(ctx context.Context, id string, path *string) error {
	const query = `UPDATE users SET avatar_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, exec sqlx.ExtContext, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetPartnerFlag records whether the user owns a partner profile.
func (r *UserRepository) SetPartnerFlag(ctx context.Context, exec sqlx.ExtContext, id string, hasProfile bool) error {
	const query = `UPDATE users SET has_partner_profile = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, hasProfile, time.Now().UTC()); err != nil {
		return fmt.Errorf("set partner flag: %w", err)
	}
	return nil
}

// Delete removes the user row. Sessions and the partner profile must be
// deleted first.
func (r *UserRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	const query = `DELETE FROM users WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user rows affected: %w", err)
	}
	return affected > 0, nil
}
