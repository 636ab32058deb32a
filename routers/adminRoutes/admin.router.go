package adminRoutes

import (
	"github.com/gofiber/fiber/v2"

	adminControllers "scraphub/controllers/admin"
	"scraphub/middleware"
	"scraphub/models"
)

func SetupAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.JWTMiddleware, middleware.RequireRole(models.RoleAdmin))

	adminGroup.Get("/audit", adminControllers.AuditList)
}
