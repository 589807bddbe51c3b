package database

import (
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/models"
)

// SystemUserID identifies the synthetic sender of system-kind messages.
const SystemUserID = "00000000-0000-0000-0000-000000000001"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageRead{},
		&models.Notification{},
	)
}

// SeedData ensures the synthetic system user exists. Real users are mirrored
// from the identity provider; this core never creates them.
func SeedData(db *gorm.DB) error {
	system := models.User{
		BaseModel: models.BaseModel{ID: SystemUserID},
		Name:      "System",
		Email:     "system@progdesk.internal",
		Role:      "admin",
		IsActive:  false,
	}
	return db.Where(models.User{BaseModel: models.BaseModel{ID: system.ID}}).
		Attrs(system).
		FirstOrCreate(&models.User{}).Error
}
