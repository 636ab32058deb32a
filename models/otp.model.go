package models

import (
	"time"

	"gorm.io/gorm"
)

// Code purposes
const (
	PurposeEmailVerification = "EMAIL_VERIFICATION"
	PurposePasswordReset     = "PASSWORD_RESET"
)

// Code kinds decide what a successful verification means. The kind is fixed
// at issuance time, never inferred from the metadata shape.
const (
	KindNewRegistration = "NEW_REGISTRATION" // metadata carries the staged registration
	KindExistingAccount = "EXISTING_ACCOUNT" // metadata carries the account id
)

// OneTimeCode is a single-use verification code. Only a bcrypt hash of the
// code is stored. Scope is an email for pre-account flows or "user:<id>" for
// account-scoped flows.
type OneTimeCode struct {
	gorm.Model
	Scope     string    `gorm:"size:191;index:idx_code_scope_purpose" json:"scope"`
	Purpose   string    `gorm:"size:64;index:idx_code_scope_purpose" json:"purpose"`
	CodeHash  string    `gorm:"not null" json:"-"`
	Kind      string    `gorm:"size:32" json:"kind"`
	Metadata  string    `gorm:"type:text" json:"-"` // opaque payload, JSON
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	IsUsed    bool      `gorm:"default:false" json:"isUsed"`
}

// StagedRegistration is the payload staged on a NEW_REGISTRATION code while
// email ownership is still unproven. The password is already hashed.
type StagedRegistration struct {
	Role         string           `json:"role"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"passwordHash"`
	Name         string           `json:"name,omitempty"`
	BusinessName string           `json:"businessName,omitempty"`
	Documents    []StagedDocument `json:"documents,omitempty"`
}

// StagedDocument references a file already persisted to durable storage.
type StagedDocument struct {
	Type         string `json:"type"`
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
}
