package admission

import (
	"fmt"
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
)

type RateLimiter struct {
	Config config.PulseConfig
}

// Admit is a pure function of the user's history and now. Signals stamped
// after now still count toward the throttles.
func (r RateLimiter) Admit(history []models.Signal, userID, venueID, kind string, now time.Time) Decision {
	if kind == models.SignalKindVibeReport {
		return r.admitVibe(history, userID, venueID, now)
	}

	var sameNext, globalNext *time.Time
	for _, s := range history {
		if s.UserID != userID || !s.IsClockIn() {
			continue
		}
		elapsed := now.Sub(s.Timestamp)
		if s.VenueID == venueID && elapsed < r.Config.SameVenueThrottle {
			next := s.Timestamp.Add(r.Config.SameVenueThrottle)
			if sameNext == nil || next.After(*sameNext) {
				sameNext = timePtr(next)
			}
		}
		if elapsed < r.Config.ClockInThrottle {
			next := s.Timestamp.Add(r.Config.ClockInThrottle)
			if globalNext == nil || next.After(*globalNext) {
				globalNext = timePtr(next)
			}
		}
	}

	switch {
	case sameNext != nil:
		next := sameNext
		if globalNext != nil && globalNext.After(*next) {
			next = globalNext
		}
		return reject(ReasonRateLimitedSameVenue, next,
			fmt.Sprintf("already clocked in here; try again after %s", next.UTC().Format(time.RFC3339)))
	case globalNext != nil:
		return reject(ReasonRateLimitedGlobal, globalNext,
			fmt.Sprintf("clock-ins are limited to one every %s; try again after %s",
				r.Config.ClockInThrottle, globalNext.UTC().Format(time.RFC3339)))
	}
	return accept()
}

// Vibe reports are never rejected. The newest report per user and venue
// wins; the decision names the report it replaces.
func (r RateLimiter) admitVibe(history []models.Signal, userID, venueID string, now time.Time) Decision {
	d := accept()
	d.ValidUntil = timePtr(now.Add(r.Config.VibeValidity))

	since := now.Add(-r.Config.VibeValidity)
	var latest *models.Signal
	for i := range history {
		s := &history[i]
		if s.UserID != userID || s.VenueID != venueID || !s.IsVibeReport() {
			continue
		}
		if !s.Timestamp.After(since) {
			continue
		}
		if latest == nil || !s.Timestamp.Before(latest.Timestamp) {
			latest = s
		}
	}
	if latest != nil {
		d.Supersedes = latest.ID
	}
	return d
}
