package utils

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"scraphub/config"
	"scraphub/database"
	"scraphub/models"
)

// logCleanup logs cleanup events with timestamp
func logCleanup(message string) {
	log.Printf("[CODE-CLEANUP %s] %s", time.Now().Format(time.RFC3339), message)
}

// purgeStaleCodes deletes one-time codes past the staging retention window.
// Expiry is already enforced lazily at verification time; this sweep only
// keeps the table from growing without bound.
func purgeStaleCodes() {
	db := database.Database.Db
	cutoff := time.Now().Add(-time.Duration(config.AppConfig.StagingTTLHours) * time.Hour)

	result := db.Unscoped().Where("created_at < ?", cutoff).Delete(&models.OneTimeCode{})
	if result.Error != nil {
		logCleanup("Error purging stale codes: " + result.Error.Error())
		return
	}
	if result.RowsAffected > 0 {
		logCleanup("Purged stale one-time codes")
	}
}

// StartCleanupScheduler runs the code sweep every hour.
func StartCleanupScheduler() *cron.Cron {
	c := cron.New()

	if _, err := c.AddFunc("@hourly", purgeStaleCodes); err != nil {
		log.Fatalf("Failed to schedule code cleanup: %v", err)
	}

	c.Start()
	logCleanup("Cleanup scheduler started")
	return c
}
