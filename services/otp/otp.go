// Package otp issues and verifies short-lived single-use numeric codes.
// Codes are scoped by (scope, purpose): scope is an email for pre-account
// flows or "user:<id>" for account-scoped flows. Only a bcrypt hash of the
// code is persisted.
package otp

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"scraphub/config"
	"scraphub/models"
)

var (
	ErrCodeNotFound = errors.New("no active code for this scope and purpose")
	ErrCodeExpired  = errors.New("code has expired")
	ErrCodeMismatch = errors.New("code does not match")
)

// AccountScope builds the scope string for account-scoped codes.
func AccountScope(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// GenerateCode generates a fixed-length numeric code
func GenerateCode() string {
	length := 6
	if config.AppConfig != nil && config.AppConfig.OtpLength > 0 {
		length = config.AppConfig.OtpLength
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	code := ""
	for i := 0; i < length; i++ {
		code += fmt.Sprintf("%d", rng.Intn(10))
	}
	return code
}

// Issue creates a fresh code for (scope, purpose), superseding any unused
// codes for the same pair so at most one code is verifiable at a time.
// Returns the plaintext code for dispatch; it is never stored.
func Issue(db *gorm.DB, scope, purpose, kind, metadata string) (string, error) {
	code := GenerateCode()

	hash, err := bcrypt.GenerateFromPassword([]byte(code), config.AppConfig.SaltRound)
	if err != nil {
		return "", err
	}

	// Supersede older unused codes for the same scope/purpose
	if err := db.Model(&models.OneTimeCode{}).
		Where("scope = ? AND purpose = ? AND is_used = ?", scope, purpose, false).
		Update("is_used", true).Error; err != nil {
		return "", err
	}

	record := models.OneTimeCode{
		Scope:     scope,
		Purpose:   purpose,
		CodeHash:  string(hash),
		Kind:      kind,
		Metadata:  metadata,
		ExpiresAt: time.Now().Add(time.Duration(config.AppConfig.OtpTTLMinutes) * time.Minute),
	}

	if err := db.Create(&record).Error; err != nil {
		return "", err
	}

	return code, nil
}

// Verify checks code against the most recent unused code for (scope, purpose)
// and consumes it on success. Consumption is a conditional update, so a
// concurrent or repeated verification of the same record fails.
func Verify(db *gorm.DB, scope, purpose, code string) (*models.OneTimeCode, error) {
	var record models.OneTimeCode

	err := db.Where("scope = ? AND purpose = ? AND is_used = ?", scope, purpose, false).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	if record.ExpiresAt.Before(time.Now()) {
		return nil, ErrCodeExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)); err != nil {
		return nil, ErrCodeMismatch
	}

	// Mark used atomically; losing the race means the code was already consumed
	result := db.Model(&models.OneTimeCode{}).
		Where("id = ? AND is_used = ?", record.ID, false).
		Update("is_used", true)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrCodeNotFound
	}

	record.IsUsed = true
	return &record, nil
}

// Latest returns the newest unconsumed code for (scope, purpose) issued
// within the staging retention window, without consuming it. The code itself
// may already be expired; the resend flow only needs its staged metadata.
func Latest(db *gorm.DB, scope, purpose string) (*models.OneTimeCode, error) {
	var record models.OneTimeCode

	cutoff := time.Now().Add(-time.Duration(config.AppConfig.StagingTTLHours) * time.Hour)
	err := db.Where("scope = ? AND purpose = ? AND is_used = ? AND created_at > ?",
		scope, purpose, false, cutoff).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	return &record, nil
}
