package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"scraphub/config"
	"scraphub/database"
	adminRoutes "scraphub/routers/adminRoutes"
	authRoutes "scraphub/routers/authRoutes"
	kycRoutes "scraphub/routers/kycRoutes"
	userRoutes "scraphub/routers/userRoutes"
	"scraphub/utils"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	app := fiber.New(fiber.Config{
		BodyLimit: 16 * 1024 * 1024, // document uploads
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
		AllowHeaders: "Content-Type,Authorization",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	// Serve locally stored uploads
	app.Static("/uploads", config.AppConfig.UploadDir)

	authRoutes.SetupAuthRoutes(app)
	userRoutes.SetupUserRoutes(app)
	kycRoutes.SetupKycRoutes(app)
	adminRoutes.SetupAdminRoutes(app)

	utils.StartCleanupScheduler()

	log.Printf("Server is running on port %s", config.AppConfig.Port)
	log.Fatal(app.Listen(":" + config.AppConfig.Port))
}
