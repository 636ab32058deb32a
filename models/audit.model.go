package models

import (
	"gorm.io/gorm"
)

// Audit action tags
const (
	ActionEmailVerifiedAndRegistered = "EMAIL_VERIFIED_AND_REGISTERED"
	ActionEmailVerified              = "EMAIL_VERIFIED"
	ActionLogin                      = "LOGIN"
	ActionPasswordReset              = "PASSWORD_RESET"
	ActionKycAutoDecision            = "KYC_AUTO_DECISION"
	ActionKycManualApproved          = "KYC_MANUAL_APPROVED"
	ActionKycManualRejected          = "KYC_MANUAL_REJECTED"
	ActionRoleUpgraded               = "ROLE_UPGRADED"
	ActionRoleUpgradeRejected        = "ROLE_UPGRADE_REJECTED"
	ActionCollectorCreated           = "COLLECTOR_CREATED"
)

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	gorm.Model
	ActorID      *uint  `gorm:"index" json:"actorId,omitempty"`
	ActorRole    string `gorm:"size:32" json:"actorRole"`
	Action       string `gorm:"size:64;not null;index" json:"action"`
	ResourceType string `gorm:"size:32;default:''" json:"resourceType,omitempty"`
	ResourceID   uint   `gorm:"default:0" json:"resourceId,omitempty"`
	Metadata     string `gorm:"type:text" json:"metadata,omitempty"`
}
