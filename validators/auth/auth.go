package authValidator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	authController "scraphub/controllers/auth"
	"scraphub/middleware"
	"scraphub/models"
)

var validate = validator.New()

// Roles a client may self-register as. Collectors are provisioned by a
// warehouse, admins are seeded out of band.
var selfRegisterRoles = map[string]bool{
	models.RoleIndividual: true,
	models.RoleWarehouse:  true,
	models.RoleCompany:    true,
}

func isValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// requireFiles checks that each multipart field carries at least one file.
func requireFiles(c *fiber.Ctx, errors map[string]string, fields ...string) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		for _, field := range fields {
			errors[field] = "A document upload is required!"
		}
		return
	}
	for _, field := range fields {
		if len(form.File[field]) == 0 {
			errors[field] = "A document upload is required!"
		}
	}
}

// Register validator middleware
func Register() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(authController.RegisterRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if !selfRegisterRoles[reqData.Role] {
			errors["role"] = "Role must be one of INDIVIDUAL, WAREHOUSE, COMPANY!"
		}
		if !isValidEmail(reqData.Email) {
			errors["email"] = "Invalid email!"
		}
		if len(strings.TrimSpace(reqData.Password)) < 8 {
			errors["password"] = "Password must be at least 8 characters long!"
		}

		switch reqData.Role {
		case models.RoleIndividual:
			if strings.TrimSpace(reqData.Name) == "" {
				errors["name"] = "Name is required!"
			}
		case models.RoleWarehouse:
			if strings.TrimSpace(reqData.BusinessName) == "" {
				errors["businessName"] = "Business name is required!"
			}
			requireFiles(c, errors, "idFront", "idBack")
		case models.RoleCompany:
			if strings.TrimSpace(reqData.BusinessName) == "" {
				errors["businessName"] = "Company name is required!"
			}
			requireFiles(c, errors, "idFront", "idBack", "taxCertificate", "utilityBill")
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedRegister", reqData)
		return c.Next()
	}
}

// VerifyOTP validator middleware
func VerifyOTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(authController.VerifyOtpRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if !isValidEmail(reqData.Email) {
			errors["email"] = "Invalid email!"
		}
		if !regexp.MustCompile(`^\d{6}$`).MatchString(reqData.Code) {
			errors["code"] = "Code must be a 6-digit number!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedVerifyOtp", reqData)
		return c.Next()
	}
}

// ResendOTP validator middleware
func ResendOTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(authController.ResendOtpRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if !isValidEmail(reqData.Email) {
			return middleware.ValidationErrorResponse(c, map[string]string{"email": "Invalid email!"})
		}

		c.Locals("validatedResendOtp", reqData)
		return c.Next()
	}
}

// Login validator middleware
func Login() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if !isValidEmail(reqData.Email) {
			errors["email"] = "Invalid email!"
		}
		if len(strings.TrimSpace(reqData.Password)) < 8 {
			errors["password"] = "Password must be at least 8 characters long!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		return c.Next()
	}
}
