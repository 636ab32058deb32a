package middleware

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"scraphub/database"
	"scraphub/models"
)

// RequireRole returns a middleware that allows only users holding one of the
// given roles. The role is re-read from the database so a promotion or
// suspension takes effect without waiting for token expiry.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userId").(uint)
		if !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized: User ID not found", nil)
		}

		var user models.User
		err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
			}
			return JsonResponse(c, fiber.StatusInternalServerError, false, "Server error while checking permissions!", nil)
		}

		if user.VerificationStatus == models.StatusBlocked || user.VerificationStatus == models.StatusSuspended {
			return JsonResponse(c, fiber.StatusForbidden, false, "Your account is not allowed to perform this action!", nil)
		}

		for _, role := range roles {
			if user.Role == role {
				c.Locals("currentUser", &user)
				return c.Next()
			}
		}

		return JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this resource!", nil)
	}
}
