package authController_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"scraphub/config"
	authController "scraphub/controllers/auth"
	"scraphub/database"
	"scraphub/models"
	"scraphub/routers/authRoutes"
)

// memStore keeps uploads out of tests; the returned URL is derived from the
// uploaded filename so fake OCR backends can key on it.
type memStore struct{}

func (memStore) Save(file *multipart.FileHeader, folder string) (string, error) {
	return "mem://" + folder + "/" + file.Filename, nil
}

type fakeExtractor struct {
	texts map[string]string
}

func (f fakeExtractor) ExtractText(documentURL string) string {
	return f.texts[documentURL]
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// newTestApp wires the auth routes against a fresh database and captures
// outgoing codes per email instead of sending mail.
func newTestApp(t *testing.T) (*fiber.App, *gorm.DB, map[string]string) {
	config.LoadConfig()
	config.AppConfig.SaltRound = bcrypt.MinCost

	db := database.ConnectTest("auth_" + strings.ReplaceAll(t.Name(), "/", "_"))

	codes := make(map[string]string)
	authController.Store = memStore{}
	authController.Extractor = fakeExtractor{}
	authController.SendCode = func(code, email string) error {
		codes[email] = code
		return nil
	}
	authController.SendDecision = func(email, status, reason string) error { return nil }

	app := fiber.New()
	authRoutes.SetupAuthRoutes(app)
	return app, db, codes
}

func doJSON(t *testing.T, app *fiber.App, path string, payload interface{}) (int, apiResponse) {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return doRequest(t, app, req)
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, apiResponse) {
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string]string) *http.Request {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for field, value := range fields {
		require.NoError(t, w.WriteField(field, value))
	}
	for field, content := range files {
		fw, err := w.CreateFormFile(field, field+".jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func seedUser(t *testing.T, db *gorm.DB, email, password, role string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Name:               "Seeded",
		Email:              &email,
		Password:           string(hash),
		Role:               role,
		VerificationStatus: models.StatusVerified,
		KycStage:           models.KycStageVerified,
		IsEmailVerified:    true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestRegisterStagesWithoutAccount(t *testing.T) {
	app, db, codes := newTestApp(t)

	code, body := doJSON(t, app, "/auth/register", fiber.Map{
		"role":     models.RoleIndividual,
		"email":    "ali@example.com",
		"password": "secret-pass",
		"name":     "Ali",
	})
	require.Equal(t, fiber.StatusCreated, code)
	assert.True(t, body.Status)

	// No account row yet, just a staged code
	var users int64
	db.Model(&models.User{}).Count(&users)
	assert.Equal(t, int64(0), users)

	var record models.OneTimeCode
	require.NoError(t, db.Where("scope = ?", "ali@example.com").First(&record).Error)
	assert.Equal(t, models.KindNewRegistration, record.Kind)
	assert.False(t, record.IsUsed)
	assert.Len(t, codes["ali@example.com"], 6)
}

func TestRegisterValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, body := doJSON(t, app, "/auth/register", fiber.Map{
		"role":     "SUPERUSER",
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.False(t, body.Status)
}

func TestRegisterRejectsExistingEmail(t *testing.T) {
	app, db, _ := newTestApp(t)
	seedUser(t, db, "taken@example.com", "secret-pass", models.RoleIndividual)

	code, body := doJSON(t, app, "/auth/register", fiber.Map{
		"role":     models.RoleIndividual,
		"email":    "taken@example.com",
		"password": "secret-pass",
		"name":     "Ali",
	})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "Email is already registered!", body.Message)
}

func TestVerifyOtpCreatesAccount(t *testing.T) {
	app, db, codes := newTestApp(t)

	code, _ := doJSON(t, app, "/auth/register", fiber.Map{
		"role":     models.RoleIndividual,
		"email":    "ali@example.com",
		"password": "secret-pass",
		"name":     "Ali",
	})
	require.Equal(t, fiber.StatusCreated, code)

	code, body := doJSON(t, app, "/auth/verify-otp", fiber.Map{
		"email": "ali@example.com",
		"code":  codes["ali@example.com"],
	})
	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, body.Status)

	var user models.User
	require.NoError(t, db.Where("email = ?", "ali@example.com").First(&user).Error)
	assert.Equal(t, models.RoleIndividual, user.Role)
	assert.Equal(t, models.StatusVerified, user.VerificationStatus)
	assert.Equal(t, models.KycStageVerified, user.KycStage)
	assert.True(t, user.IsEmailVerified)
	assert.NotContains(t, string(body.Data), "password")

	var entry models.AuditLog
	assert.NoError(t, db.Where("action = ?", models.ActionEmailVerifiedAndRegistered).First(&entry).Error)
}

func TestVerifyOtpConsumedCodeCannotConfirmTwice(t *testing.T) {
	app, _, codes := newTestApp(t)

	doJSON(t, app, "/auth/register", fiber.Map{
		"role":     models.RoleIndividual,
		"email":    "ali@example.com",
		"password": "secret-pass",
		"name":     "Ali",
	})

	payload := fiber.Map{"email": "ali@example.com", "code": codes["ali@example.com"]}
	code, _ := doJSON(t, app, "/auth/verify-otp", payload)
	require.Equal(t, fiber.StatusOK, code)

	code, body := doJSON(t, app, "/auth/verify-otp", payload)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "Invalid or expired code!", body.Message)
}

func TestVerifyOtpWrongCode(t *testing.T) {
	app, db, codes := newTestApp(t)

	doJSON(t, app, "/auth/register", fiber.Map{
		"role":     models.RoleIndividual,
		"email":    "ali@example.com",
		"password": "secret-pass",
		"name":     "Ali",
	})

	wrong := "000000"
	if codes["ali@example.com"] == wrong {
		wrong = "111111"
	}
	code, _ := doJSON(t, app, "/auth/verify-otp", fiber.Map{"email": "ali@example.com", "code": wrong})
	assert.Equal(t, fiber.StatusBadRequest, code)

	var users int64
	db.Model(&models.User{}).Count(&users)
	assert.Equal(t, int64(0), users)
}

func TestWarehouseRegistrationVerifiesThroughOcr(t *testing.T) {
	app, db, codes := newTestApp(t)

	authController.Extractor = fakeExtractor{texts: map[string]string{
		"mem://kyc/idFront.jpg": "CNIC 12345-1234567-1",
	}}

	req := multipartRequest(t, "/auth/register", map[string]string{
		"role":         models.RoleWarehouse,
		"email":        "wh@example.com",
		"password":     "secret-pass",
		"businessName": "Karachi Scrap Depot",
	}, map[string]string{
		"idFront": "front-bytes",
		"idBack":  "back-bytes",
	})
	code, _ := doRequest(t, app, req)
	require.Equal(t, fiber.StatusCreated, code)

	code, _ = doJSON(t, app, "/auth/verify-otp", fiber.Map{
		"email": "wh@example.com",
		"code":  codes["wh@example.com"],
	})
	require.Equal(t, fiber.StatusOK, code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "wh@example.com").First(&user).Error)
	assert.Equal(t, models.RoleWarehouse, user.Role)
	assert.Equal(t, models.StatusVerified, user.VerificationStatus)
	require.NotNil(t, user.IdentityNumber)
	assert.Equal(t, "12345-1234567-1", *user.IdentityNumber)

	var docs []models.Document
	db.Where("user_id = ?", user.ID).Find(&docs)
	assert.Len(t, docs, 2)
}

func TestWarehouseRegistrationUnreadableDocuments(t *testing.T) {
	app, db, codes := newTestApp(t)

	authController.Extractor = fakeExtractor{texts: map[string]string{}}

	req := multipartRequest(t, "/auth/register", map[string]string{
		"role":         models.RoleWarehouse,
		"email":        "wh@example.com",
		"password":     "secret-pass",
		"businessName": "Karachi Scrap Depot",
	}, map[string]string{
		"idFront": "front-bytes",
		"idBack":  "back-bytes",
	})
	code, _ := doRequest(t, app, req)
	require.Equal(t, fiber.StatusCreated, code)

	// The account still materializes; only the identity check fails
	code, _ = doJSON(t, app, "/auth/verify-otp", fiber.Map{
		"email": "wh@example.com",
		"code":  codes["wh@example.com"],
	})
	require.Equal(t, fiber.StatusOK, code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "wh@example.com").First(&user).Error)
	assert.Equal(t, models.StatusRejected, user.VerificationStatus)
	assert.Equal(t, models.KycStageDocumentsUploaded, user.KycStage)
	assert.NotEmpty(t, user.RejectionReason)
	assert.True(t, user.IsEmailVerified)
}

func TestWarehouseRegistrationRequiresDocuments(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, body := doJSON(t, app, "/auth/register", fiber.Map{
		"role":         models.RoleWarehouse,
		"email":        "wh@example.com",
		"password":     "secret-pass",
		"businessName": "Karachi Scrap Depot",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.False(t, body.Status)
}

func TestResendOtpSupersedesStagedCode(t *testing.T) {
	app, _, codes := newTestApp(t)

	doJSON(t, app, "/auth/register", fiber.Map{
		"role":     models.RoleIndividual,
		"email":    "ali@example.com",
		"password": "secret-pass",
		"name":     "Ali",
	})
	first := codes["ali@example.com"]

	code, _ := doJSON(t, app, "/auth/resend-otp", fiber.Map{"email": "ali@example.com"})
	require.Equal(t, fiber.StatusOK, code)
	second := codes["ali@example.com"]

	if first != second {
		code, _ = doJSON(t, app, "/auth/verify-otp", fiber.Map{"email": "ali@example.com", "code": first})
		assert.Equal(t, fiber.StatusBadRequest, code, "superseded code must not verify")
	}

	code, _ = doJSON(t, app, "/auth/verify-otp", fiber.Map{"email": "ali@example.com", "code": second})
	assert.Equal(t, fiber.StatusOK, code)
}

func TestResendOtpUnknownEmail(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, body := doJSON(t, app, "/auth/resend-otp", fiber.Map{"email": "ghost@example.com"})
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "No pending registration for this email!", body.Message)
}

func TestLogin(t *testing.T) {
	app, db, _ := newTestApp(t)
	seedUser(t, db, "ali@example.com", "secret-pass", models.RoleIndividual)

	code, body := doJSON(t, app, "/auth/login", fiber.Map{
		"email":    "ali@example.com",
		"password": "secret-pass",
	})
	require.Equal(t, fiber.StatusOK, code)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.NotEmpty(t, data.Token)

	code, _ = doJSON(t, app, "/auth/login", fiber.Map{
		"email":    "ali@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	app, db, _ := newTestApp(t)
	user := seedUser(t, db, "ali@example.com", "secret-pass", models.RoleIndividual)
	require.NoError(t, db.Model(user).Update("is_email_verified", false).Error)

	code, body := doJSON(t, app, "/auth/login", fiber.Map{
		"email":    "ali@example.com",
		"password": "secret-pass",
	})
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Equal(t, "Email not verified!", body.Message)
}

func TestLoginBlockedAccount(t *testing.T) {
	app, db, _ := newTestApp(t)
	user := seedUser(t, db, "ali@example.com", "secret-pass", models.RoleIndividual)
	require.NoError(t, db.Model(user).Update("verification_status", models.StatusBlocked).Error)

	code, _ := doJSON(t, app, "/auth/login", fiber.Map{
		"email":    "ali@example.com",
		"password": "secret-pass",
	})
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestPasswordResetFlow(t *testing.T) {
	app, db, codes := newTestApp(t)
	seedUser(t, db, "ali@example.com", "secret-pass", models.RoleIndividual)

	code, _ := doJSON(t, app, "/auth/forgot-password", fiber.Map{"email": "ali@example.com"})
	require.Equal(t, fiber.StatusOK, code)
	reset := codes["ali@example.com"]
	require.Len(t, reset, 6)

	code, _ = doJSON(t, app, "/auth/reset-password", fiber.Map{
		"email":    "ali@example.com",
		"code":     reset,
		"password": "brand-new-pass",
	})
	require.Equal(t, fiber.StatusOK, code)

	code, _ = doJSON(t, app, "/auth/login", fiber.Map{
		"email":    "ali@example.com",
		"password": "brand-new-pass",
	})
	assert.Equal(t, fiber.StatusOK, code)

	// The consumed reset code is dead
	code, _ = doJSON(t, app, "/auth/reset-password", fiber.Map{
		"email":    "ali@example.com",
		"code":     reset,
		"password": "another-new-pass",
	})
	assert.Equal(t, fiber.StatusBadRequest, code)
}
