package userController

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"scraphub/database"
	"scraphub/middleware"
	"scraphub/models"
	"scraphub/services/audit"
	"scraphub/services/kyc"
	"scraphub/services/ocr"

	kycController "scraphub/controllers/kyc"
)

// Extractor is swappable for tests.
var Extractor ocr.TextExtractor

func getExtractor() ocr.TextExtractor {
	if Extractor == nil {
		Extractor = ocr.NewClient()
	}
	return Extractor
}

// UpgradeRequest is the validated upgrade payload; documents ride in the
// multipart form.
type UpgradeRequest struct {
	RequestedRole string `json:"requestedRole" form:"requestedRole"`
	BusinessName  string `json:"businessName" form:"businessName"`
}

// UpgradeRole elevates a verified account to a higher-trust role after the
// same document checks the registration pipeline applies. The user is waiting
// on the answer, so everything here runs synchronously and OCR failures
// surface as errors instead of being swallowed.
func UpgradeRole(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	reqData, ok := c.Locals("validatedUpgrade").(*UpgradeRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	if user.VerificationStatus != models.StatusVerified || !user.IsEmailVerified {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Only verified accounts can request a role upgrade.", nil)
	}

	if !kyc.AllowedUpgrade(user.Role, reqData.RequestedRole) {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Role upgrade from "+user.Role+" to "+reqData.RequestedRole+" is not allowed!", nil)
	}

	// Claim the pending slot; a concurrent or unresolved request loses here
	claim := db.Model(&models.User{}).
		Where("id = ? AND requested_role = ''", user.ID).
		Update("requested_role", reqData.RequestedRole)
	if claim.Error != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	if claim.RowsAffected == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "An upgrade request is already pending!", nil)
	}

	required := kyc.RequiredDocuments(reqData.RequestedRole)
	documents, missing, err := kycController.StoreSubmittedDocuments(c, db, user.ID, required)
	if err != nil {
		releaseClaim(userID)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to store uploaded document!", nil)
	}
	if missing != "" {
		releaseClaim(userID)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Missing required document: "+missing, nil)
	}

	engine := &kyc.Engine{Db: db, Extractor: getExtractor()}
	decision, err := engine.Check(&user, reqData.RequestedRole, documents)
	if err != nil {
		releaseClaim(userID)
		log.Printf("Upgrade evaluation failed for user %d: %v", user.ID, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Verification could not be completed. Please try again.", nil)
	}

	if !decision.Verified() {
		releaseClaim(userID)
		audit.Record(db, &user.ID, user.Role, models.ActionRoleUpgradeRejected, "user", user.ID, map[string]interface{}{
			"requestedRole": reqData.RequestedRole,
			"reason":        decision.Reason,
		})
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, decision.Reason, decision)
	}

	// Updates writes the map back into the struct, so the pre-promotion role
	// must be captured first for the audit entry.
	fromRole := user.Role

	updates := map[string]interface{}{
		"role":                reqData.RequestedRole,
		"requested_role":      "",
		"verification_status": models.StatusVerified,
		"kyc_stage":           models.KycStageVerified,
		"rejection_reason":    "",
		"identity_number":     decision.IdentityNumber,
	}
	if reqData.BusinessName != "" {
		updates["business_name"] = reqData.BusinessName
	}
	if decision.TaxNumber != "" {
		updates["tax_number"] = decision.TaxNumber
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		releaseClaim(userID)
		if kyc.IsUniqueViolation(err) {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, kyc.ReasonDuplicateID, nil)
		}
		log.Printf("Error promoting user %d: %v", user.ID, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to upgrade role!", nil)
	}

	audit.Record(db, &user.ID, fromRole, models.ActionRoleUpgraded, "user", user.ID, map[string]interface{}{
		"from": fromRole,
		"to":   reqData.RequestedRole,
	})

	user.Role = reqData.RequestedRole
	user.VerificationStatus = models.StatusVerified
	user.KycStage = models.KycStageVerified
	user.RequestedRole = ""
	user.Sanitize()

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Role upgraded successfully.", user)
}

// releaseClaim frees the pending-upgrade slot so the account may retry.
func releaseClaim(userID uint) {
	err := database.Database.Db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("requested_role", "").Error
	if err != nil {
		log.Printf("Error releasing upgrade claim for user %d: %v", userID, err)
	}
}
