package models

// AuditLog records admin actions and account links for later review.
type AuditLog struct {
	Base
	ActorID      string `gorm:"size:36;index" json:"actor_id"`
	Action       string `gorm:"size:64;not null" json:"action"`
	TargetUserID string `gorm:"size:36;index" json:"target_user_id"`
	IPAddress    string `gorm:"size:64" json:"ip_address"`
	Changes      string `gorm:"type:text" json:"changes,omitempty"`
}

// Audit actions.
const (
	AuditRoleChanged   = "user.role_changed"
	AuditActiveChanged = "user.active_changed"
	AuditPasswordReset = "user.password_reset"
	AuditOAuthLinked   = "user.oauth_linked_by_email"
	AuditAdminSeeded   = "user.admin_seeded"
)
