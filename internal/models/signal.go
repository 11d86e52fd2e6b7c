package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SignalKindClockIn    = "clock_in"
	SignalKindVibeReport = "vibe_report"
)

// Signal is an immutable crowd-sourced fact about a venue. Rows are only ever
// inserted by the admission pipeline; they are retained for anti-abuse lookback.
type Signal struct {
	ID      string `gorm:"type:varchar(36);primaryKey"`
	VenueID string `gorm:"type:varchar(100);not null;index:idx_signals_venue_ts,priority:1"`
	UserID  string `gorm:"type:varchar(100);not null;index:idx_signals_user_ts,priority:1"`
	Kind    string `gorm:"type:varchar(20);not null"`

	ReportedStatus   *string        `gorm:"type:varchar(20)"`
	GamesUpdated     datatypes.JSON `gorm:"type:jsonb"`
	Verified         bool           `gorm:"not null;default:false"`
	ConsentMarketing bool           `gorm:"not null;default:false"`
	PointsAwarded    int            `gorm:"not null;default:0"`

	Timestamp time.Time `gorm:"column:occurred_at;type:timestamptz;not null;index:idx_signals_venue_ts,priority:2;index:idx_signals_user_ts,priority:2"`
}

func (Signal) TableName() string {
	return "signals"
}

func (s Signal) IsClockIn() bool { return s.Kind == SignalKindClockIn }

func (s Signal) IsVibeReport() bool { return s.Kind == SignalKindVibeReport }
