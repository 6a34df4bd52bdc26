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

const partnerColumns = `id, user_id, full_name, gender, birthday, address, cccd, years_of_experience, cccd_front_path, cccd_back_path, health_cert_paths, profile_status, created_at, updated_at`

// PartnerProfileRepository persists partner applications.
type PartnerProfileRepository struct {
	db *sqlx.DB
}

// NewPartnerProfileRepository creates a new PartnerProfileRepository.
func NewPartnerProfileRepository(db *sqlx.DB) *PartnerProfileRepository {
	return &PartnerProfileRepository{db: db}
}

func (r *PartnerProfileRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByUserID returns the user's partner profile, or nil.
func (r *PartnerProfileRepository) FindByUserID(ctx context.Context, userID string) (*models.PartnerProfile, error) {
	const query = `SELECT ` + partnerColumns + ` FROM partner_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.PartnerProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find partner profile: %w", err)
	}
	return &profile, nil
}

// Create inserts a profile. A second profile for the same user yields ErrDuplicate.
func (r *PartnerProfileRepository) Create(ctx context.Context, exec sqlx.ExtContext, profile *models.PartnerProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.HealthCertPaths == nil {
		profile.HealthCertPaths = []string{}
	}

	const query = `INSERT INTO partner_profiles (id, user_id, full_name, gender, birthday, address, cccd, years_of_experience, cccd_front_path, cccd_back_path, health_cert_paths, profile_status, created_at, updated_at)
VALUES (:id, :user_id, :full_name, :gender, :birthday, :address, :cccd, :years_of_experience, :cccd_front_path, :cccd_back_path, :health_cert_paths, :profile_status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, profile); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create partner profile: %w", ErrDuplicate)
		}
		return fmt.Errorf("create partner profile: %w", err)
	}
	return nil
}

// Update writes every mutable column of the profile.
func (r *PartnerProfileRepository) Update(ctx context.Context, profile *models.PartnerProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	if profile.HealthCertPaths == nil {
		profile.HealthCertPaths = []string{}
	}
	const query = `UPDATE partner_profiles SET full_name = :full_name, gender = :gender, birthday = :birthday, address = :address, cccd = :cccd,
years_of_experience = :years_of_experience, cccd_front_path = :cccd_front_path, cccd_back_path = :cccd_back_path,
health_cert_paths = :health_cert_paths, profile_status = :profile_status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update partner profile: %w", err)
	}
	return nil
}

// DeleteByUserID removes the user's profile if any.
func (r *PartnerProfileRepository) DeleteByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) error {
	const query = `DELETE FROM partner_profiles WHERE user_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete partner profile: %w", err)
	}
	return nil
}
