package models

import (
	"time"

	"gorm.io/gorm"
)

// Platform roles, ordered by trust level
const (
	RoleIndividual = "INDIVIDUAL"
	RoleWarehouse  = "WAREHOUSE"
	RoleCompany    = "COMPANY"
	RoleCollector  = "COLLECTOR"
	RoleAdmin      = "ADMIN"
)

// Verification status values
const (
	StatusPending   = "PENDING"
	StatusVerified  = "VERIFIED"
	StatusRejected  = "REJECTED"
	StatusBlocked   = "BLOCKED"
	StatusSuspended = "SUSPENDED"
)

// KYC stage values
const (
	KycStageRegistered        = "REGISTERED"
	KycStageDocumentsUploaded = "DOCUMENTS_UPLOADED"
	KycStageVerified          = "VERIFIED"
	KycStageRejected          = "REJECTED"
)

type User struct {
	gorm.Model
	Name               string  `gorm:"default:''" json:"name"`
	Email              *string `gorm:"uniqueIndex" json:"email"`
	Password           string  `gorm:"not null" json:"-"`
	Role               string  `gorm:"default:'INDIVIDUAL'" json:"role"`
	BusinessName       string  `gorm:"default:''" json:"businessName"`
	VerificationStatus string  `gorm:"default:'PENDING'" json:"verificationStatus"`
	KycStage           string  `gorm:"default:'REGISTERED'" json:"kycStage"`
	RejectionReason    string  `gorm:"default:''" json:"rejectionReason,omitempty"`
	RequestedRole      string  `gorm:"default:''" json:"requestedRole,omitempty"`
	IdentityNumber     *string `gorm:"uniqueIndex" json:"identityNumber,omitempty"`
	TaxNumber          *string `gorm:"uniqueIndex" json:"taxNumber,omitempty"`
	IsEmailVerified    bool    `gorm:"default:false" json:"isEmailVerified"`
	CreatedBy          *uint   `json:"createdBy,omitempty"` // warehouse that provisioned a collector
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
	IsDeleted          bool    `gorm:"default:false" json:"-"`
}

// IsValidRole reports whether role belongs to the closed role set.
func IsValidRole(role string) bool {
	switch role {
	case RoleIndividual, RoleWarehouse, RoleCompany, RoleCollector, RoleAdmin:
		return true
	}
	return false
}

// Sanitize strips fields that must never leave the server.
func (u *User) Sanitize() {
	u.Password = ""
}
