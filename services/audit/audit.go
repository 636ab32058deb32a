// Package audit appends activity-log entries. Writing the log never blocks
// or fails the action being recorded; a lost entry is logged and dropped.
package audit

import (
	"encoding/json"
	"log"

	"gorm.io/gorm"

	"scraphub/models"
)

// Record appends one audit entry. metadata may be nil.
func Record(db *gorm.DB, actorID *uint, actorRole, action, resourceType string, resourceID uint, metadata map[string]interface{}) {
	entry := models.AuditLog{
		ActorID:      actorID,
		ActorRole:    actorRole,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}

	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			log.Printf("Error marshalling audit metadata for %s: %v", action, err)
		} else {
			entry.Metadata = string(raw)
		}
	}

	if err := db.Create(&entry).Error; err != nil {
		log.Printf("Error writing audit entry %s: %v", action, err)
	}
}
