package models

import "time"

// Venue is owned by the venue CRUD collaborator. The pulse engine reads
// Capacity/Timezone and writes the cached pulse columns.
type Venue struct {
	ID       string `gorm:"type:varchar(100);primaryKey"`
	Name     string `gorm:"type:varchar(200);not null"`
	Capacity int    `gorm:"not null;default:0"`
	Timezone string `gorm:"type:varchar(64);not null;default:'America/Los_Angeles'"`

	// Status is always the classification of Score (saturation).
	// DisplayStatus may carry a consensus override.
	Status         string     `gorm:"type:varchar(20);not null;default:'mellow'"`
	Score          float64    `gorm:"not null;default:0"`
	RawScore       float64    `gorm:"not null;default:0"`
	DisplayStatus  string     `gorm:"type:varchar(20);not null;default:'mellow'"`
	Headcount      int        `gorm:"not null;default:0"`
	LastComputedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Venue) TableName() string {
	return "venues"
}
