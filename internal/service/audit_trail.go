package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/gvn-booking-api/internal/models"
)

type auditLogWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// auditTrail writes audit rows. A failed write is logged and never fails the
// operation being audited.
type auditTrail struct {
	repo   auditLogWriter
	logger *zap.Logger
}

func (a auditTrail) record(ctx context.Context, action, userID, sessionID string, client models.ClientInfo, metadata map[string]interface{}) {
	if a.repo == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		UserID:    optional(userID),
		SessionID: optional(sessionID),
		IPAddress: optional(client.IP),
		UserAgent: optional(client.UserAgent),
	}
	if len(metadata) > 0 {
		payload, err := json.Marshal(metadata)
		if err == nil {
			entry.Metadata = payload
		}
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
