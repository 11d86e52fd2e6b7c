package models

import "time"

const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"

	NotificationKindVenuePacked = "venue_packed"
	NotificationChannelPush     = "push"
)

// NotificationLog is the outbox of alerts the engine decided to fire. Delivery
// (SMS/push) is done by another service that drains pending rows.
type NotificationLog struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(100);not null;index:idx_notification_user_venue,priority:1"`
	VenueID   string    `gorm:"type:varchar(100);not null;index:idx_notification_user_venue,priority:2"`
	Kind      string    `gorm:"type:varchar(30);not null"`
	Channel   string    `gorm:"type:varchar(20);not null;default:'push'"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;index:idx_notification_user_venue,priority:3"`
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}
