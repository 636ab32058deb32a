package adminController

import (
	"github.com/gofiber/fiber/v2"

	"scraphub/database"
	"scraphub/middleware"
	"scraphub/models"
)

// AuditList returns audit entries, newest first, optionally filtered by actor
// or action tag.
func AuditList(c *fiber.Ctx) error {
	db := database.Database.Db

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := db.Model(&models.AuditLog{})
	if actor := c.QueryInt("actorId", 0); actor > 0 {
		query = query.Where("actor_id = ?", actor)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	query.Count(&total)

	var entries []models.AuditLog
	if err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&entries).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch audit log!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Audit log.", fiber.Map{
		"entries": entries,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}
