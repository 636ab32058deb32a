package kycController

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"scraphub/database"
	"scraphub/middleware"
	"scraphub/models"
	"scraphub/services/audit"
	"scraphub/services/kyc"
	"scraphub/services/ocr"
	"scraphub/utils"
)

// Swappable seams for tests.
var (
	Store     utils.FileStore
	Extractor ocr.TextExtractor
)

func getFileStore() utils.FileStore {
	if Store == nil {
		Store = utils.NewFileStore()
	}
	return Store
}

func getExtractor() ocr.TextExtractor {
	if Extractor == nil {
		Extractor = ocr.NewClient()
	}
	return Extractor
}

var documentFields = map[string]string{
	"idFront":        models.DocIDFront,
	"idBack":         models.DocIDBack,
	"taxCertificate": models.DocTaxCertificate,
	"utilityBill":    models.DocUtilityBill,
}

// Submit accepts a fresh document set and evaluates it synchronously. A
// rejected account restarts here; there is no attempt limit.
func Submit(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	required := kyc.RequiredDocuments(user.Role)
	if len(required) == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Your role does not require identity verification.", nil)
	}

	documents, missing, err := StoreSubmittedDocuments(c, db, user.ID, required)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to store uploaded document!", nil)
	}
	if missing != "" {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Missing required document: "+missing, nil)
	}

	db.Model(&user).Updates(map[string]interface{}{
		"verification_status": models.StatusPending,
		"kyc_stage":           models.KycStageDocumentsUploaded,
	})

	engine := &kyc.Engine{Db: db, Extractor: getExtractor()}
	decision, err := engine.Evaluate(&user, user.Role, documents)
	if err != nil {
		if errors.Is(err, kyc.ErrMissingDocument) {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
		}
		log.Printf("KYC evaluation failed for user %d: %v", user.ID, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Verification could not be completed. Please try again.", nil)
	}

	message := "Your account has been verified."
	code := fiber.StatusOK
	if !decision.Verified() {
		message = decision.Reason
		code = fiber.StatusBadRequest
	}

	return middleware.JsonResponse(c, code, decision.Verified(), message, decision)
}

// StoreSubmittedDocuments saves the uploaded files from the multipart form
// and replaces any previous document row of the same type. Returns the field
// name of the first missing required document, if any.
func StoreSubmittedDocuments(c *fiber.Ctx, db *gorm.DB, userID uint, required []string) ([]models.Document, string, error) {
	form, _ := c.MultipartForm()

	uploaded := make(map[string]bool)
	var documents []models.Document

	if form != nil {
		for field, docType := range documentFields {
			files := form.File[field]
			if len(files) == 0 {
				continue
			}
			url, err := getFileStore().Save(files[0], "kyc")
			if err != nil {
				log.Printf("Error saving uploaded file %s: %v", field, err)
				return nil, "", err
			}

			db.Where("user_id = ? AND type = ?", userID, docType).Delete(&models.Document{})
			row := models.Document{
				UserID:       userID,
				Type:         docType,
				URL:          url,
				OriginalName: files[0].Filename,
			}
			if err := db.Create(&row).Error; err != nil {
				return nil, "", err
			}
			documents = append(documents, row)
			uploaded[docType] = true
		}
	}

	for _, docType := range required {
		if !uploaded[docType] {
			return nil, docType, nil
		}
	}
	return documents, "", nil
}

// Status reports the caller's verification state and what is still expected.
func Status(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	var documents []models.Document
	db.Where("user_id = ?", userID).Find(&documents)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "KYC status.", fiber.Map{
		"verificationStatus": user.VerificationStatus,
		"kycStage":           user.KycStage,
		"rejectionReason":    user.RejectionReason,
		"requestedRole":      user.RequestedRole,
		"requiredDocuments":  kyc.RequiredDocuments(user.Role),
		"documents":          documents,
	})
}

// Pending lists accounts awaiting manual review: stuck evaluations and
// unresolved upgrade requests.
func Pending(c *fiber.Ctx) error {
	db := database.Database.Db

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := db.Model(&models.User{}).
		Where("is_deleted = ?", false).
		Where("verification_status = ? OR requested_role <> ''", models.StatusPending)

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Offset(offset).Limit(limit).Order("created_at ASC").Find(&users).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch pending accounts!", nil)
	}

	for i := range users {
		users[i].Sanitize()
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Pending KYC accounts.", fiber.Map{
		"users": users,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// Approve is the admin override: it verifies the account directly and
// resolves any pending role-upgrade request by promoting.
func Approve(c *fiber.Ctx) error {
	adminID, _ := c.Locals("userId").(uint)

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid user id!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", id, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	updates := map[string]interface{}{
		"verification_status": models.StatusVerified,
		"kyc_stage":           models.KycStageVerified,
		"rejection_reason":    "",
	}
	promotedTo := ""
	if user.RequestedRole != "" {
		updates["role"] = user.RequestedRole
		updates["requested_role"] = ""
		promotedTo = user.RequestedRole
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to approve account!", nil)
	}

	audit.Record(db, &adminID, models.RoleAdmin, models.ActionKycManualApproved, "user", user.ID, map[string]interface{}{
		"decision":   "MANUAL",
		"promotedTo": promotedTo,
	})

	user.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Account approved.", user)
}

// Reject is the admin override in the other direction. The stage becomes
// REJECTED (its own enum member, not the status value reused).
func Reject(c *fiber.Ctx) error {
	adminID, _ := c.Locals("userId").(uint)

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid user id!", nil)
	}

	reqData := new(struct {
		Reason string `json:"reason"`
	})
	if err := c.BodyParser(reqData); err != nil || reqData.Reason == "" {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "A rejection reason is required!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", id, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "User not found!", nil)
	}

	if err := db.Model(&user).Updates(map[string]interface{}{
		"verification_status": models.StatusRejected,
		"kyc_stage":           models.KycStageRejected,
		"rejection_reason":    reqData.Reason,
		"requested_role":      "",
	}).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to reject account!", nil)
	}

	audit.Record(db, &adminID, models.RoleAdmin, models.ActionKycManualRejected, "user", user.ID, map[string]interface{}{
		"decision": "MANUAL",
		"reason":   reqData.Reason,
	})

	user.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Account rejected.", user)
}
