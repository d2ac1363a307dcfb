package database

import (
	"gorm.io/gorm"

	"chathub/internal/models"
)

// Migrate applies the schema for all persisted entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageSeen{},
		&models.MessageDeletion{},
	)
}
