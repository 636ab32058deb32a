package authRoutes

import (
	"github.com/gofiber/fiber/v2"

	authControllers "scraphub/controllers/auth"
	authValidators "scraphub/validators/auth"
)

func SetupAuthRoutes(app *fiber.App) {
	authGroup := app.Group("/auth")

	authGroup.Post("/register", authValidators.Register(), authControllers.Register)
	authGroup.Post("/verify-otp", authValidators.VerifyOTP(), authControllers.VerifyOTP)
	authGroup.Post("/resend-otp", authValidators.ResendOTP(), authControllers.ResendOTP)
	authGroup.Post("/login", authValidators.Login(), authControllers.Login)
	authGroup.Post("/forgot-password", authControllers.ForgotPassword)
	authGroup.Post("/reset-password", authControllers.ResetPassword)
}
