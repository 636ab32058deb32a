// Package kyc decides whether an account's uploaded identity documents are
// good enough to trust it with a business role. Decisions are deterministic:
// the same account, role and documents always produce the same outcome.
package kyc

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"scraphub/models"
	"scraphub/services/audit"
	"scraphub/services/ocr"
)

// ErrMissingDocument is returned when a required document was never uploaded.
// This is a validation failure, reported before any OCR runs.
var ErrMissingDocument = errors.New("required document missing")

// Rejection reasons are user-facing; keep them specific enough to act on.
const (
	ReasonExtractionFailed = "We could not read an identity number from your document. Please upload a clearer image."
	ReasonInvalidFormat    = "The identity number on your document is not in a valid format."
	ReasonDuplicateID      = "This identity document is already registered to another account."
	ReasonTaxExtraction    = "We could not read a tax registration number from your tax certificate. Please upload a clearer image."
	ReasonTaxInvalid       = "The tax registration number on your certificate is not in a valid format."
	ReasonTaxDuplicate     = "This tax registration number is already registered to another account."
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Status         string `json:"status"`
	Stage          string `json:"stage"`
	Reason         string `json:"reason,omitempty"`
	IdentityNumber string `json:"identityNumber,omitempty"`
	TaxNumber      string `json:"taxNumber,omitempty"`
}

func (d *Decision) Verified() bool {
	return d.Status == models.StatusVerified
}

func rejected(reason string) *Decision {
	return &Decision{Status: models.StatusRejected, Stage: models.KycStageDocumentsUploaded, Reason: reason}
}

// Engine runs the document checks. Extractor is swappable so tests do not
// depend on a live OCR backend.
type Engine struct {
	Db        *gorm.DB
	Extractor ocr.TextExtractor
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{Db: db, Extractor: ocr.NewClient()}
}

// RequiredDocuments lists the documents a role must provide before it can be
// verified. An empty list means the role needs no identity verification.
func RequiredDocuments(role string) []string {
	switch role {
	case models.RoleWarehouse:
		return []string{models.DocIDFront, models.DocIDBack}
	case models.RoleCompany:
		return []string{models.DocIDFront, models.DocIDBack, models.DocTaxCertificate, models.DocUtilityBill}
	}
	return nil
}

// Evaluate applies format, uniqueness and role-specific document checks and
// persists the outcome on the user row. role is passed separately from
// user.Role because the upgrade flow evaluates against the requested role.
func (e *Engine) Evaluate(user *models.User, role string, documents []models.Document) (*Decision, error) {
	decision, err := e.Check(user, role, documents)
	if err != nil {
		return nil, err
	}
	return decision, e.persist(user, decision)
}

// Check runs the same checks as Evaluate but leaves the user row untouched,
// so a failed role-upgrade does not demote an already-verified account.
// Extraction results are still recorded as evidence.
func (e *Engine) Check(user *models.User, role string, documents []models.Document) (*Decision, error) {
	required := RequiredDocuments(role)

	// Roles without identity requirements are verified at email-ownership level
	if len(required) == 0 {
		return &Decision{Status: models.StatusVerified, Stage: models.KycStageVerified}, nil
	}

	byType := make(map[string]models.Document)
	for _, doc := range documents {
		byType[doc.Type] = doc
	}
	for _, docType := range required {
		if _, ok := byType[docType]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingDocument, docType)
		}
	}

	// Front is checked before back; the first readable number wins
	identityNumber := ""
	for _, docType := range []string{models.DocIDFront, models.DocIDBack} {
		doc := byType[docType]
		text := e.Extractor.ExtractText(doc.URL)
		number := ocr.ExtractIdentityNumber(text)
		e.saveExtraction(user.ID, doc, text, number, "")
		if identityNumber == "" && number != "" {
			identityNumber = number
		}
	}

	if identityNumber == "" {
		return rejected(ReasonExtractionFailed), nil
	}
	if !ocr.IsValidIdentityNumber(identityNumber) {
		return rejected(ReasonInvalidFormat), nil
	}

	// One identity document backs exactly one account
	taken, err := e.claimedByOther(user.ID, "identity_number", identityNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		return rejected(ReasonDuplicateID), nil
	}

	taxNumber := ""
	if role == models.RoleCompany {
		doc := byType[models.DocTaxCertificate]
		text := e.Extractor.ExtractText(doc.URL)
		taxNumber = ocr.ExtractTaxNumber(text)
		e.saveExtraction(user.ID, doc, text, "", taxNumber)

		if taxNumber == "" {
			return rejected(ReasonTaxExtraction), nil
		}
		if !ocr.IsValidTaxNumber(taxNumber) {
			return rejected(ReasonTaxInvalid), nil
		}
		taken, err := e.claimedByOther(user.ID, "tax_number", taxNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return rejected(ReasonTaxDuplicate), nil
		}
	}

	return &Decision{
		Status:         models.StatusVerified,
		Stage:          models.KycStageVerified,
		IdentityNumber: identityNumber,
		TaxNumber:      taxNumber,
	}, nil
}

func (e *Engine) claimedByOther(userID uint, column, value string) (bool, error) {
	var count int64
	err := e.Db.Model(&models.User{}).
		Where(column+" = ? AND id <> ? AND is_deleted = ?", value, userID, false).
		Count(&count).Error
	return count > 0, err
}

// saveExtraction replaces the extraction record for (user, document type):
// one row per pair, the latest pass wins.
func (e *Engine) saveExtraction(userID uint, doc models.Document, text, identityNumber, taxNumber string) {
	e.Db.Where("user_id = ? AND document_type = ?", userID, doc.Type).Delete(&models.ExtractionResult{})

	result := models.ExtractionResult{
		UserID:         userID,
		DocumentType:   doc.Type,
		SourceURL:      doc.URL,
		RawText:        text,
		IdentityNumber: identityNumber,
		TaxNumber:      taxNumber,
		Matched:        identityNumber != "" || taxNumber != "",
	}
	if err := e.Db.Create(&result).Error; err != nil {
		log.Printf("Error saving extraction result for user %d: %v", userID, err)
	}
}

// persist writes the decision onto the user row as a single update. A unique
// constraint race on the identity or tax number (two evaluations claiming the
// same number concurrently) downgrades the decision to a duplicate rejection.
func (e *Engine) persist(user *models.User, decision *Decision) error {
	updates := map[string]interface{}{
		"verification_status": decision.Status,
		"kyc_stage":           decision.Stage,
		"rejection_reason":    decision.Reason,
	}
	if decision.IdentityNumber != "" {
		updates["identity_number"] = decision.IdentityNumber
	}
	if decision.TaxNumber != "" {
		updates["tax_number"] = decision.TaxNumber
	}

	err := e.Db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
	if err != nil && IsUniqueViolation(err) {
		decision.Status = models.StatusRejected
		decision.Stage = models.KycStageDocumentsUploaded
		decision.Reason = ReasonDuplicateID
		decision.IdentityNumber = ""
		decision.TaxNumber = ""
		err = e.Db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"verification_status": decision.Status,
			"kyc_stage":           decision.Stage,
			"rejection_reason":    decision.Reason,
		}).Error
	}
	if err != nil {
		return err
	}

	user.VerificationStatus = decision.Status
	user.KycStage = decision.Stage
	user.RejectionReason = decision.Reason
	if decision.IdentityNumber != "" {
		user.IdentityNumber = &decision.IdentityNumber
	}
	if decision.TaxNumber != "" {
		user.TaxNumber = &decision.TaxNumber
	}

	audit.Record(e.Db, nil, "SYSTEM", models.ActionKycAutoDecision, "user", user.ID, map[string]interface{}{
		"decision": "AUTO",
		"status":   decision.Status,
		"reason":   decision.Reason,
	})
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint error from
// the underlying database.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
