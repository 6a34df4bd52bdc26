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

const sessionColumns = `id, user_id, access_token_hash, access_expires_at, refresh_token_hash, refresh_expires_at, is_active, device_info, platform, ip_address, user_agent, created_at, updated_at`

// SessionRepository persists login sessions. Every read goes to the
// database; nothing is cached in process.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, user_id, access_token_hash, access_expires_at, refresh_token_hash, refresh_expires_at, is_active, device_info, platform, ip_address, user_agent, created_at, updated_at)
VALUES (:id, :user_id, :access_token_hash, :access_expires_at, :refresh_token_hash, :refresh_expires_at, :is_active, :device_info, :platform, :ip_address, :user_agent, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByRefreshToken returns the session whose current refresh token has the
// given digest, or nil.
func (r *SessionRepository) FindByRefreshToken(ctx context.Context, refreshHash string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token_hash = $1 LIMIT 1`
	return r.findOne(ctx, "find session by refresh token", query, refreshHash)
}

// FindByID returns a session by identifier, or nil.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 LIMIT 1`
	return r.findOne(ctx, "find session by id", query, id)
}

func (r *SessionRepository) findOne(ctx context.Context, op, query string, arg interface{}) (*models.Session, error) {
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &session, nil
}

// ListByUser returns all sessions of a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Rotate replaces both token digests and expiries on an active session, but
// only while the stored refresh digest still equals the one the caller
// presented. It reports false when another rotation or a logout got there
// first.
func (r *SessionRepository) Rotate(ctx context.Context, rotation models.SessionRotation) (bool, error) {
	const query = `UPDATE sessions
SET access_token_hash = $3, access_expires_at = $4, refresh_token_hash = $5, refresh_expires_at = $6, updated_at = $7
WHERE id = $1 AND refresh_token_hash = $2 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query,
		rotation.SessionID,
		rotation.PreviousRefreshHash,
		rotation.AccessTokenHash,
		rotation.AccessExpiresAt,
		rotation.RefreshTokenHash,
		rotation.RefreshExpiresAt,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("rotate session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rotate session rows affected: %w", err)
	}
	return affected == 1, nil
}

// Deactivate marks one session of the user inactive. It reports false when
// the session does not exist or belongs to someone else.
func (r *SessionRepository) Deactivate(ctx context.Context, userID, sessionID string) (bool, error) {
	const query = `UPDATE sessions SET is_active = FALSE, updated_at = $3 WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, sessionID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate session rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeactivateAllForUser marks every active session of the user inactive,
// except keepSessionID when it is non-empty.
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, exec sqlx.ExtContext, userID, keepSessionID string) (int64, error) {
	query := `UPDATE sessions SET is_active = FALSE, updated_at = $2 WHERE user_id = $1 AND is_active = TRUE`
	args := []interface{}{userID, time.Now().UTC()}
	if keepSessionID != "" {
		query += ` AND id <> $3`
		args = append(args, keepSessionID)
	}
	res, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate user sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate user sessions rows affected: %w", err)
	}
	return affected, nil
}

// DeleteAllForUser removes every session row of the user.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, exec sqlx.ExtContext, userID string) (int64, error) {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user sessions rows affected: %w", err)
	}
	return affected, nil
}
