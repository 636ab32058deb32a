package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectTest opens an isolated in-memory sqlite database, runs migrations and
// installs it as the global instance. Each test suite passes its own name so
// parallel packages do not share state.
func ConnectTest(name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to open test database: %v", err)
	}

	runMigrations(db)
	Database = DbInstance{Db: db}
	return db
}
