package kycController_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"scraphub/config"
	kycController "scraphub/controllers/kyc"
	"scraphub/database"
	"scraphub/middleware"
	"scraphub/models"
	"scraphub/routers/kycRoutes"
)

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

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	config.LoadConfig()
	config.AppConfig.SaltRound = bcrypt.MinCost

	db := database.ConnectTest("kycapi_" + strings.ReplaceAll(t.Name(), "/", "_"))

	kycController.Store = memStore{}
	kycController.Extractor = fakeExtractor{}

	app := fiber.New()
	kycRoutes.SetupKycRoutes(app)
	return app, db
}

func seedUser(t *testing.T, db *gorm.DB, email, role, status string) *models.User {
	user := models.User{
		Name:               "Seeded",
		Email:              &email,
		Password:           "x",
		Role:               role,
		VerificationStatus: status,
		KycStage:           models.KycStageRegistered,
		IsEmailVerified:    true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func tokenFor(t *testing.T, user *models.User) string {
	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, *user.Email)
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, apiResponse) {
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func jsonRequest(t *testing.T, method, path, token string, payload interface{}) *http.Request {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func submitRequest(t *testing.T, token string, files map[string]string) *http.Request {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for field, content := range files {
		fw, err := w.CreateFormFile(field, field+".jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/kyc/register", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestSubmitRequiresToken(t *testing.T) {
	app, _ := newTestApp(t)

	code, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/kyc/register", "", nil))
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestSubmitIndividualHasNothingToVerify(t *testing.T) {
	app, db := newTestApp(t)
	user := seedUser(t, db, "solo@example.com", models.RoleIndividual, models.StatusVerified)

	code, body := doRequest(t, app, submitRequest(t, tokenFor(t, user), nil))
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "Your role does not require identity verification.", body.Message)
}

func TestSubmitWarehouseVerifies(t *testing.T) {
	app, db := newTestApp(t)
	user := seedUser(t, db, "wh@example.com", models.RoleWarehouse, models.StatusPending)

	kycController.Extractor = fakeExtractor{texts: map[string]string{
		"mem://kyc/idFront.jpg": "12345-1234567-1",
	}}

	code, body := doRequest(t, app, submitRequest(t, tokenFor(t, user), map[string]string{
		"idFront": "front-bytes",
		"idBack":  "back-bytes",
	}))
	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, body.Status)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, models.StatusVerified, stored.VerificationStatus)
	require.NotNil(t, stored.IdentityNumber)
	assert.Equal(t, "12345-1234567-1", *stored.IdentityNumber)
}

func TestSubmitMissingDocument(t *testing.T) {
	app, db := newTestApp(t)
	user := seedUser(t, db, "wh@example.com", models.RoleWarehouse, models.StatusPending)

	code, body := doRequest(t, app, submitRequest(t, tokenFor(t, user), map[string]string{
		"idFront": "front-bytes",
	}))
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body.Message, models.DocIDBack)

	// Nothing was evaluated
	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, models.StatusPending, stored.VerificationStatus)
}

func TestSubmitRejectedThenResubmit(t *testing.T) {
	app, db := newTestApp(t)
	user := seedUser(t, db, "wh@example.com", models.RoleWarehouse, models.StatusPending)

	kycController.Extractor = fakeExtractor{texts: map[string]string{}}
	code, _ := doRequest(t, app, submitRequest(t, tokenFor(t, user), map[string]string{
		"idFront": "blurry",
		"idBack":  "blurry",
	}))
	require.Equal(t, fiber.StatusBadRequest, code)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	require.Equal(t, models.StatusRejected, stored.VerificationStatus)

	// No attempt limit: a clearer scan goes straight through
	kycController.Extractor = fakeExtractor{texts: map[string]string{
		"mem://kyc/idFront.jpg": "12345-1234567-1",
	}}
	code, _ = doRequest(t, app, submitRequest(t, tokenFor(t, user), map[string]string{
		"idFront": "sharp",
		"idBack":  "sharp",
	}))
	require.Equal(t, fiber.StatusOK, code)

	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, models.StatusVerified, stored.VerificationStatus)
}

func TestStatus(t *testing.T) {
	app, db := newTestApp(t)
	user := seedUser(t, db, "wh@example.com", models.RoleWarehouse, models.StatusPending)

	code, body := doRequest(t, app, jsonRequest(t, http.MethodGet, "/kyc/status", tokenFor(t, user), nil))
	require.Equal(t, fiber.StatusOK, code)

	var data struct {
		VerificationStatus string   `json:"verificationStatus"`
		KycStage           string   `json:"kycStage"`
		RequiredDocuments  []string `json:"requiredDocuments"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, models.StatusPending, data.VerificationStatus)
	assert.Equal(t, models.KycStageRegistered, data.KycStage)
	assert.Equal(t, []string{models.DocIDFront, models.DocIDBack}, data.RequiredDocuments)
}

func TestPendingRequiresAdmin(t *testing.T) {
	app, db := newTestApp(t)
	user := seedUser(t, db, "wh@example.com", models.RoleWarehouse, models.StatusVerified)

	code, _ := doRequest(t, app, jsonRequest(t, http.MethodGet, "/kyc/pending", tokenFor(t, user), nil))
	assert.Equal(t, fiber.StatusForbidden, code)
}

func TestPendingListsReviewQueue(t *testing.T) {
	app, db := newTestApp(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin, models.StatusVerified)

	seedUser(t, db, "stuck@example.com", models.RoleWarehouse, models.StatusPending)
	upgrading := seedUser(t, db, "up@example.com", models.RoleIndividual, models.StatusVerified)
	require.NoError(t, db.Model(upgrading).Update("requested_role", models.RoleWarehouse).Error)
	seedUser(t, db, "fine@example.com", models.RoleIndividual, models.StatusVerified)

	code, body := doRequest(t, app, jsonRequest(t, http.MethodGet, "/kyc/pending", tokenFor(t, admin), nil))
	require.Equal(t, fiber.StatusOK, code)

	var data struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Len(t, data.Users, 2)

	emails := []string{*data.Users[0].Email, *data.Users[1].Email}
	assert.Contains(t, emails, "stuck@example.com")
	assert.Contains(t, emails, "up@example.com")
}

func TestApprove(t *testing.T) {
	app, db := newTestApp(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin, models.StatusVerified)
	user := seedUser(t, db, "stuck@example.com", models.RoleWarehouse, models.StatusPending)

	code, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/kyc/approve/"+itoa(user.ID), tokenFor(t, admin), nil))
	require.Equal(t, fiber.StatusOK, code)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, models.StatusVerified, stored.VerificationStatus)
	assert.Equal(t, models.KycStageVerified, stored.KycStage)

	var entry models.AuditLog
	assert.NoError(t, db.Where("action = ?", models.ActionKycManualApproved).First(&entry).Error)
}

func TestApprovePromotesRequestedRole(t *testing.T) {
	app, db := newTestApp(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin, models.StatusVerified)
	user := seedUser(t, db, "up@example.com", models.RoleIndividual, models.StatusVerified)
	require.NoError(t, db.Model(user).Update("requested_role", models.RoleWarehouse).Error)

	code, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/kyc/approve/"+itoa(user.ID), tokenFor(t, admin), nil))
	require.Equal(t, fiber.StatusOK, code)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, models.RoleWarehouse, stored.Role)
	assert.Empty(t, stored.RequestedRole)
}

func TestRejectRequiresReason(t *testing.T) {
	app, db := newTestApp(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin, models.StatusVerified)
	user := seedUser(t, db, "stuck@example.com", models.RoleWarehouse, models.StatusPending)

	code, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/kyc/reject/"+itoa(user.ID), tokenFor(t, admin), fiber.Map{}))
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestReject(t *testing.T) {
	app, db := newTestApp(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin, models.StatusVerified)
	user := seedUser(t, db, "stuck@example.com", models.RoleWarehouse, models.StatusPending)
	require.NoError(t, db.Model(user).Update("requested_role", models.RoleCompany).Error)

	code, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/kyc/reject/"+itoa(user.ID), tokenFor(t, admin), fiber.Map{
		"reason": "Documents do not match the business records.",
	}))
	require.Equal(t, fiber.StatusOK, code)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, models.StatusRejected, stored.VerificationStatus)
	assert.Equal(t, models.KycStageRejected, stored.KycStage)
	assert.Equal(t, "Documents do not match the business records.", stored.RejectionReason)
	assert.Empty(t, stored.RequestedRole)

	var entry models.AuditLog
	assert.NoError(t, db.Where("action = ?", models.ActionKycManualRejected).First(&entry).Error)
}

func TestApproveUnknownUser(t *testing.T) {
	app, db := newTestApp(t)
	admin := seedUser(t, db, "admin@example.com", models.RoleAdmin, models.StatusVerified)

	code, _ := doRequest(t, app, jsonRequest(t, http.MethodPost, "/kyc/approve/9999", tokenFor(t, admin), nil))
	assert.Equal(t, fiber.StatusNotFound, code)
}

func itoa(id uint) string {
	return strconv.Itoa(int(id))
}
