package authController

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"scraphub/config"
	"scraphub/database"
	"scraphub/middleware"
	"scraphub/models"
	"scraphub/services/audit"
	"scraphub/services/kyc"
	"scraphub/services/ocr"
	"scraphub/services/otp"
	"scraphub/utils"
)

// Swappable seams: tests replace the code dispatcher, the file store and the
// OCR backend.
var (
	SendCode     = utils.SendOTPEmail
	SendDecision = utils.SendDecisionEmail
	Store        utils.FileStore
	Extractor    ocr.TextExtractor
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

// RegisterRequest is the validated registration payload (files ride alongside
// in the multipart form).
type RegisterRequest struct {
	Role         string `json:"role" form:"role"`
	Email        string `json:"email" form:"email"`
	Password     string `json:"password" form:"password"`
	Name         string `json:"name" form:"name"`
	BusinessName string `json:"businessName" form:"businessName"`
}

// documentFields maps multipart field names to document types.
var documentFields = map[string]string{
	"idFront":        models.DocIDFront,
	"idBack":         models.DocIDBack,
	"taxCertificate": models.DocTaxCertificate,
	"utilityBill":    models.DocUtilityBill,
}

// Register stages a registration keyed by email. No Account row is created
// until the emailed code is verified.
func Register(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedRegister").(*RegisterRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	// Only a materialized account blocks the email. A previous staged attempt
	// that never confirmed is simply superseded by this submission.
	var existing models.User
	if err := db.Where("email = ? AND is_deleted = ?", reqData.Email, false).First(&existing).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Email is already registered!", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reqData.Password), config.AppConfig.SaltRound)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	// Persist uploads to durable storage before staging
	staged := models.StagedRegistration{
		Role:         reqData.Role,
		Email:        reqData.Email,
		PasswordHash: string(hashedPassword),
		Name:         reqData.Name,
		BusinessName: reqData.BusinessName,
	}

	form, _ := c.MultipartForm()
	if form != nil {
		for field, docType := range documentFields {
			files := form.File[field]
			if len(files) == 0 {
				continue
			}
			url, err := getFileStore().Save(files[0], "kyc")
			if err != nil {
				log.Printf("Error saving uploaded file %s: %v", field, err)
				return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to store uploaded document!", nil)
			}
			staged.Documents = append(staged.Documents, models.StagedDocument{
				Type:         docType,
				URL:          url,
				OriginalName: files[0].Filename,
			})
		}
	}

	metadata, err := json.Marshal(staged)
	if err != nil {
		log.Printf("Error marshalling staged registration: %v", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	code, err := otp.Issue(db, reqData.Email, models.PurposeEmailVerification, models.KindNewRegistration, string(metadata))
	if err != nil {
		log.Printf("Error issuing verification code: %v", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	if err := SendCode(code, reqData.Email); err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to send verification code!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Registration staged. Verify the code sent to your email.", fiber.Map{
		"email": reqData.Email,
	})
}

// VerifyOTP confirms email ownership. For a staged registration this is the
// moment the Account materializes; the consumed code cannot confirm twice.
func VerifyOTP(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedVerifyOtp").(*VerifyOtpRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	record, err := otp.Verify(db, reqData.Email, models.PurposeEmailVerification, reqData.Code)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid or expired code!", nil)
	}

	if record.Kind == models.KindNewRegistration {
		return confirmNewRegistration(c, db, record)
	}
	return confirmExistingAccount(c, db, record)
}

// VerifyOtpRequest is the validated confirmation payload.
type VerifyOtpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func confirmNewRegistration(c *fiber.Ctx, db *gorm.DB, record *models.OneTimeCode) error {
	var staged models.StagedRegistration
	if err := json.Unmarshal([]byte(record.Metadata), &staged); err != nil {
		log.Printf("Error decoding staged registration for %s: %v", record.Scope, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	// Race guard: a concurrent confirmation may have claimed the email since
	// staging. The unique index settles whoever loses the check below.
	var existing models.User
	if err := db.Where("email = ? AND is_deleted = ?", staged.Email, false).First(&existing).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Email is already registered!", nil)
	}

	// Email ownership is proven, so the account starts verified; role-specific
	// identity checks run right after and may override.
	email := staged.Email
	newUser := models.User{
		Name:               staged.Name,
		Email:              &email,
		Password:           staged.PasswordHash,
		Role:               staged.Role,
		BusinessName:       staged.BusinessName,
		VerificationStatus: models.StatusVerified,
		KycStage:           models.KycStageVerified,
		IsEmailVerified:    true,
	}

	var documents []models.Document
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newUser).Error; err != nil {
			return err
		}
		for _, doc := range staged.Documents {
			row := models.Document{
				UserID:       newUser.ID,
				Type:         doc.Type,
				URL:          doc.URL,
				OriginalName: doc.OriginalName,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			documents = append(documents, row)
		}
		return nil
	})
	if err != nil {
		if kyc.IsUniqueViolation(err) {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Email is already registered!", nil)
		}
		log.Printf("Error materializing account for %s: %v", staged.Email, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create account!", nil)
	}

	audit.Record(db, &newUser.ID, newUser.Role, models.ActionEmailVerifiedAndRegistered, "user", newUser.ID, map[string]interface{}{
		"email": staged.Email,
		"role":  staged.Role,
	})

	// Business roles get their identity checks in the same step. The email
	// verification outcome is already committed; a degraded OCR pass only
	// leaves the account awaiting review, it never fails the confirmation.
	if len(kyc.RequiredDocuments(newUser.Role)) > 0 {
		newUser.KycStage = models.KycStageDocumentsUploaded
		engine := &kyc.Engine{Db: db, Extractor: getExtractor()}
		decision, err := engine.Evaluate(&newUser, newUser.Role, documents)
		if err != nil {
			log.Printf("KYC evaluation failed for user %d: %v", newUser.ID, err)
			db.Model(&models.User{}).Where("id = ?", newUser.ID).Updates(map[string]interface{}{
				"verification_status": models.StatusPending,
				"kyc_stage":           models.KycStageDocumentsUploaded,
			})
			newUser.VerificationStatus = models.StatusPending
			newUser.KycStage = models.KycStageDocumentsUploaded
		} else if email := newUser.Email; email != nil {
			go func(addr, status, reason string) {
				if err := SendDecision(addr, status, reason); err != nil {
					log.Printf("Error sending decision email to %s: %v", addr, err)
				}
			}(*email, decision.Status, decision.Reason)
		}
	}

	newUser.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Email verified and account created.", newUser)
}

func confirmExistingAccount(c *fiber.Ctx, db *gorm.DB, record *models.OneTimeCode) error {
	var meta struct {
		UserID uint `json:"userId"`
	}
	if err := json.Unmarshal([]byte(record.Metadata), &meta); err != nil || meta.UserID == 0 {
		log.Printf("Error decoding code metadata for %s: %v", record.Scope, err)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid or expired code!", nil)
	}

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", meta.UserID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "User not found!", nil)
	}

	updates := map[string]interface{}{"is_email_verified": true}
	if len(kyc.RequiredDocuments(user.Role)) == 0 && user.VerificationStatus == models.StatusPending {
		updates["verification_status"] = models.StatusVerified
		updates["kyc_stage"] = models.KycStageVerified
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		log.Printf("Error updating verification for user %d: %v", user.ID, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update verification status!", nil)
	}

	audit.Record(db, &user.ID, user.Role, models.ActionEmailVerified, "user", user.ID, nil)

	user.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Email verified.", user)
}

// ResendOTP reissues the verification code: for a staged registration the
// staged payload rides along unchanged; for a materialized but unverified
// account a fresh account-bound code is issued.
func ResendOTP(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedResendOtp").(*ResendOtpRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	if record, err := otp.Latest(db, reqData.Email, models.PurposeEmailVerification); err == nil {
		code, err := otp.Issue(db, reqData.Email, models.PurposeEmailVerification, record.Kind, record.Metadata)
		if err != nil {
			log.Printf("Error reissuing verification code: %v", err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
		}
		if err := SendCode(code, reqData.Email); err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to send verification code!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Verification code resent.", nil)
	}

	var user models.User
	err := db.Where("email = ? AND is_deleted = ? AND is_email_verified = ?", reqData.Email, false, false).First(&user).Error
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No pending registration for this email!", nil)
	}

	metadata, _ := json.Marshal(map[string]uint{"userId": user.ID})
	code, err := otp.Issue(db, reqData.Email, models.PurposeEmailVerification, models.KindExistingAccount, string(metadata))
	if err != nil {
		log.Printf("Error issuing verification code: %v", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	if err := SendCode(code, reqData.Email); err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to send verification code!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Verification code resent.", nil)
}

// ResendOtpRequest is the validated resend payload.
type ResendOtpRequest struct {
	Email string `json:"email"`
}

func Login(c *fiber.Ctx) error {
	reqData := new(struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	})

	if err := c.BodyParser(reqData); err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to parse request body!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("email = ? AND is_deleted = ?", reqData.Email, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid credentials!", nil)
	}

	if !user.IsEmailVerified {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Email not verified!", nil)
	}

	if user.VerificationStatus == models.StatusBlocked || user.VerificationStatus == models.StatusSuspended {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Your account is not allowed to log in.", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(reqData.Password)); err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Wrong Password", nil)
	}

	now := time.Now()
	user.LastLogin = &now
	if err := db.Save(&user).Error; err != nil {
		log.Printf("Error saving last login time: %v", err)
	}

	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, email)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to generate token", nil)
	}

	audit.Record(db, &user.ID, user.Role, models.ActionLogin, "user", user.ID, map[string]interface{}{
		"ip": c.IP(),
	})

	user.Sanitize()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login successful.", fiber.Map{
		"user":  user,
		"token": token,
	})
}

// ForgotPassword issues a password-reset code scoped to the account.
func ForgotPassword(c *fiber.Ctx) error {
	reqData := new(struct {
		Email string `json:"email"`
	})

	if err := c.BodyParser(reqData); err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to parse request body!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("email = ? AND is_deleted = ?", reqData.Email, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid email!", nil)
	}

	code, err := otp.Issue(db, otp.AccountScope(user.ID), models.PurposePasswordReset, models.KindExistingAccount, "")
	if err != nil {
		log.Printf("Error issuing password reset code: %v", err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}
	if err := SendCode(code, reqData.Email); err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to send reset code!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password reset code sent.", nil)
}

// ResetPassword verifies the reset code and replaces the password.
func ResetPassword(c *fiber.Ctx) error {
	reqData := new(struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	})

	if err := c.BodyParser(reqData); err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to parse request body!", nil)
	}
	if len(reqData.Password) < 8 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Password must be at least 8 characters long!", nil)
	}

	db := database.Database.Db

	var user models.User
	if err := db.Where("email = ? AND is_deleted = ?", reqData.Email, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid or expired code!", nil)
	}

	if _, err := otp.Verify(db, otp.AccountScope(user.ID), models.PurposePasswordReset, reqData.Code); err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid or expired code!", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reqData.Password), config.AppConfig.SaltRound)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to hash password!", nil)
	}

	if err := db.Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to reset password!", nil)
	}

	audit.Record(db, &user.ID, user.Role, models.ActionPasswordReset, "user", user.ID, nil)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password reset successfully.", nil)
}

