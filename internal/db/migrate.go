package db

import (
	"pulse/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Signal{},
		&models.Venue{},
		&models.FlashOffer{},
		&models.UserPreference{},
		&models.VenueFollow{},
		&models.NotificationLog{},
	)
}
