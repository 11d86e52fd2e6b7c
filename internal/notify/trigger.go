// Package notify decides whether a follower should be alerted that a venue
// became packed. Delivery is someone else's job.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/pulse"
)

const DefaultTimezone = "America/Los_Angeles"

type Input struct {
	UserID         string
	VenueID        string
	Previous       pulse.StatusLabel
	Next           pulse.StatusLabel
	Preference     *models.UserPreference
	Timezone       string
	LastNotifiedAt *time.Time
	Now            time.Time
}

type Reason string

const (
	ReasonFire         Reason = "fire"
	ReasonNoTransition Reason = "no_transition"
	ReasonAlertsOff    Reason = "alerts_disabled"
	ReasonQuietHours   Reason = "quiet_hours"
	ReasonCoolingDown  Reason = "cooldown"
)

// ShouldNotify reports whether the alert fires.
func ShouldNotify(cfg config.PulseConfig, in Input) bool {
	return Evaluate(cfg, in) == ReasonFire
}

// Evaluate is ShouldNotify with the suppression reason. A missing preference
// row means alerts on and no quiet hours.
func Evaluate(cfg config.PulseConfig, in Input) Reason {
	if in.Previous == pulse.StatusPacked || in.Next != pulse.StatusPacked {
		return ReasonNoTransition
	}
	if in.Preference != nil {
		if !in.Preference.PulseAlertsEnabled {
			return ReasonAlertsOff
		}
		if q, ok := ParseQuietHours(in.Preference.QuietHoursStart, in.Preference.QuietHoursEnd); ok {
			if q.Contains(in.Now.In(Location(in.Timezone))) {
				return ReasonQuietHours
			}
		}
	}
	if in.LastNotifiedAt != nil && in.Now.Sub(*in.LastNotifiedAt) < cfg.NotificationCooldown {
		return ReasonCoolingDown
	}
	return ReasonFire
}

// Location resolves a venue timezone. Unknown names fall back to UTC.
func Location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// QuietHours is a daily local-time range in minutes after midnight.
// Start > End wraps midnight.
type QuietHours struct {
	Start int
	End   int
}

// ParseQuietHours reads an "HH:MM" pair. ok is false when either side is
// empty or malformed, or when both are equal (no quiet hours).
func ParseQuietHours(start, end string) (QuietHours, bool) {
	s, err := parseClock(start)
	if err != nil {
		return QuietHours{}, false
	}
	e, err := parseClock(end)
	if err != nil {
		return QuietHours{}, false
	}
	if s == e {
		return QuietHours{}, false
	}
	return QuietHours{Start: s, End: e}, true
}

func (q QuietHours) Contains(local time.Time) bool {
	m := local.Hour()*60 + local.Minute()
	if q.Start < q.End {
		return m >= q.Start && m < q.End
	}
	return m >= q.Start || m < q.End
}

func parseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, fmt.Errorf("quiet hours %q: want HH:MM", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("quiet hours %q: bad hour", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("quiet hours %q: bad minute", raw)
	}
	return h*60 + m, nil
}
