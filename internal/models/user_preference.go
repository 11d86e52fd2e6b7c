package models

import "time"

// UserPreference carries the alert settings the notification trigger reads.
// Quiet hours are local "HH:MM" strings; an empty pair disables them.
type UserPreference struct {
	UserID             string `gorm:"type:varchar(100);primaryKey"`
	PulseAlertsEnabled bool   `gorm:"not null;default:true"`
	QuietHoursStart    string `gorm:"type:varchar(5)"`
	QuietHoursEnd      string `gorm:"type:varchar(5)"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (UserPreference) TableName() string {
	return "user_preferences"
}

// VenueFollow links a user to a venue whose "packed" alert they want.
type VenueFollow struct {
	UserID  string `gorm:"type:varchar(100);primaryKey"`
	VenueID string `gorm:"type:varchar(100);primaryKey;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (VenueFollow) TableName() string {
	return "venue_follows"
}
