package pulse

import (
	"fmt"
	"time"

	"pulse/internal/models"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func clockIn(user, venue string, at time.Time) models.Signal {
	return models.Signal{
		ID:        fmt.Sprintf("ci-%s-%d", user, at.Unix()),
		VenueID:   venue,
		UserID:    user,
		Kind:      models.SignalKindClockIn,
		Verified:  true,
		Timestamp: at,
	}
}

func vibe(user, venue, status string, at time.Time) models.Signal {
	s := status
	return models.Signal{
		ID:             fmt.Sprintf("vr-%s-%d", user, at.Unix()),
		VenueID:        venue,
		UserID:         user,
		Kind:           models.SignalKindVibeReport,
		ReportedStatus: &s,
		Timestamp:      at,
	}
}
