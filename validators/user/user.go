package userValidator

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	userController "scraphub/controllers/user"
	"scraphub/middleware"
	"scraphub/models"
)

var validate = validator.New()

// UpgradeRole validator middleware
func UpgradeRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(userController.UpgradeRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		switch reqData.RequestedRole {
		case models.RoleWarehouse, models.RoleCompany:
			// upgrade targets are business roles only
		default:
			errors["requestedRole"] = "Requested role must be WAREHOUSE or COMPANY!"
		}

		if strings.TrimSpace(reqData.BusinessName) == "" {
			errors["businessName"] = "Business name is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedUpgrade", reqData)
		return c.Next()
	}
}

// CreateCollector validator middleware
func CreateCollector() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(userController.CollectorRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if strings.TrimSpace(reqData.Name) == "" {
			errors["name"] = "Name is required!"
		}
		if validate.Var(reqData.Email, "required,email") != nil {
			errors["email"] = "Invalid email!"
		}
		if len(strings.TrimSpace(reqData.Password)) < 8 {
			errors["password"] = "Password must be at least 8 characters long!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedCollector", reqData)
		return c.Next()
	}
}
