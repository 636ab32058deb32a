package userRoutes

import (
	"github.com/gofiber/fiber/v2"

	userControllers "scraphub/controllers/user"
	"scraphub/middleware"
	"scraphub/models"
	userValidators "scraphub/validators/user"
)

func SetupUserRoutes(app *fiber.App) {
	userGroup := app.Group("/user", middleware.JWTMiddleware)

	userGroup.Get("/profile", userControllers.GetProfile)
	userGroup.Patch("/profile", userControllers.UpdateProfile)
	userGroup.Post("/upgrade-role", userValidators.UpgradeRole(), userControllers.UpgradeRole)
	userGroup.Post("/collector", userValidators.CreateCollector(), middleware.RequireRole(models.RoleWarehouse), userControllers.CreateCollector)
}
