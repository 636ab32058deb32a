package kycRoutes

import (
	"github.com/gofiber/fiber/v2"

	kycControllers "scraphub/controllers/kyc"
	"scraphub/middleware"
	"scraphub/models"
)

func SetupKycRoutes(app *fiber.App) {
	kycGroup := app.Group("/kyc", middleware.JWTMiddleware)

	kycGroup.Post("/register", kycControllers.Submit)
	kycGroup.Get("/status", kycControllers.Status)
	kycGroup.Get("/pending", middleware.RequireRole(models.RoleAdmin), kycControllers.Pending)
	kycGroup.Post("/approve/:id", middleware.RequireRole(models.RoleAdmin), kycControllers.Approve)
	kycGroup.Post("/reject/:id", middleware.RequireRole(models.RoleAdmin), kycControllers.Reject)
}
