package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"scoreauth/internal/logger"
	"scoreauth/internal/models"
)

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(ctx context.Context, actorID, action, targetUserID string, changes map[string]any) {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		ActorID:      actorID,
		Action:       action,
		TargetUserID: targetUserID,
		IPAddress:    clientIPFrom(ctx),
		Changes:      changesJSON,
	}

	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"actor_id", actorID,
			"action", action,
			"target_user_id", targetUserID,
		)
	}
}
