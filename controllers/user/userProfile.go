package userController

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"scraphub/config"
	"scraphub/database"
	"scraphub/middleware"
	"scraphub/models"
	"scraphub/services/audit"
)

// GetProfile returns the caller's account.
func GetProfile(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	user.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "User profile.", user)
}

// UpdateProfile updates self-service fields only. Verification status, KYC
// stage and identity numbers change exclusively through the pipeline or an
// admin action.
func UpdateProfile(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	reqData := new(struct {
		Name         string `json:"name"`
		BusinessName string `json:"businessName"`
	})
	if err := c.BodyParser(reqData); err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to parse request body!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	updates := map[string]interface{}{}
	if reqData.Name != "" {
		updates["name"] = reqData.Name
	}
	if reqData.BusinessName != "" {
		updates["business_name"] = reqData.BusinessName
	}
	if len(updates) == 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Nothing to update!", nil)
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		log.Printf("Error updating profile for user %d: %v", userID, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update profile!", nil)
	}

	user.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Profile updated.", user)
}

// CreateCollector lets a warehouse provision a collector account directly.
// The account is provisional: PENDING until the collector verifies their
// email or an admin approves.
func CreateCollector(c *fiber.Ctx) error {
	warehouse, ok := c.Locals("currentUser").(*models.User)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	reqData, ok := c.Locals("validatedCollector").(*CollectorRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	var existing models.User
	if err := db.Where("email = ? AND is_deleted = ?", reqData.Email, false).First(&existing).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Email is already registered!", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reqData.Password), config.AppConfig.SaltRound)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	email := reqData.Email
	collector := models.User{
		Name:               reqData.Name,
		Email:              &email,
		Password:           string(hashedPassword),
		Role:               models.RoleCollector,
		VerificationStatus: models.StatusPending,
		KycStage:           models.KycStageRegistered,
		CreatedBy:          &warehouse.ID,
	}

	if err := db.Create(&collector).Error; err != nil {
		log.Printf("Error creating collector account: %v", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create collector account!", nil)
	}

	audit.Record(db, &warehouse.ID, warehouse.Role, models.ActionCollectorCreated, "user", collector.ID, map[string]interface{}{
		"email": reqData.Email,
	})

	collector.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Collector account created.", collector)
}

// CollectorRequest is the validated collector-provisioning payload.
type CollectorRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
