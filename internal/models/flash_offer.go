package models

import "time"

// FlashOffer is a time-bound venue deal ("Buzz Clock"). Read-only to the engine.
type FlashOffer struct {
	ID        string    `gorm:"type:varchar(100);primaryKey"`
	VenueID   string    `gorm:"type:varchar(100);not null;index"`
	Title     string    `gorm:"type:varchar(200);not null"`
	StartTime time.Time `gorm:"type:timestamptz;not null"`
	EndTime   time.Time `gorm:"type:timestamptz;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (FlashOffer) TableName() string {
	return "flash_offers"
}
