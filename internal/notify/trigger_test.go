package notify

import (
	"testing"
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/pulse"
)

// 20:30 on March 14 in Los Angeles (PDT, UTC-7).
var nowUTC = time.Date(2026, 3, 15, 3, 30, 0, 0, time.UTC)

func baseInput() Input {
	return Input{
		UserID:     "u1",
		VenueID:    "v1",
		Previous:   pulse.StatusBuzzing,
		Next:       pulse.StatusPacked,
		Preference: &models.UserPreference{UserID: "u1", PulseAlertsEnabled: true},
		Timezone:   "America/Los_Angeles",
		Now:        nowUTC,
	}
}

func TestShouldNotify_Transitions(t *testing.T) {
	cfg := config.DefaultPulseConfig()
	cases := []struct {
		prev, next pulse.StatusLabel
		want       bool
	}{
		{pulse.StatusBuzzing, pulse.StatusPacked, true},
		{pulse.StatusMellow, pulse.StatusPacked, true},
		{pulse.StatusPacked, pulse.StatusPacked, false},
		{pulse.StatusChill, pulse.StatusBuzzing, false},
		{pulse.StatusPacked, pulse.StatusBuzzing, false},
	}
	for _, tc := range cases {
		in := baseInput()
		in.Previous, in.Next = tc.prev, tc.next
		if got := ShouldNotify(cfg, in); got != tc.want {
			t.Fatalf("%s->%s got=%v want=%v", tc.prev, tc.next, got, tc.want)
		}
	}
}

func TestShouldNotify_AlertsDisabled(t *testing.T) {
	in := baseInput()
	in.Preference.PulseAlertsEnabled = false
	if got := Evaluate(config.DefaultPulseConfig(), in); got != ReasonAlertsOff {
		t.Fatalf("reason=%s want=%s", got, ReasonAlertsOff)
	}
}

func TestShouldNotify_MissingPreferenceDefaultsOn(t *testing.T) {
	in := baseInput()
	in.Preference = nil
	if !ShouldNotify(config.DefaultPulseConfig(), in) {
		t.Fatalf("want fire without preference row")
	}
}

func TestShouldNotify_QuietHoursInVenueTimezone(t *testing.T) {
	cfg := config.DefaultPulseConfig()
	// local time is 20:30
	cases := []struct {
		start, end string
		want       Reason
	}{
		{"20:00", "21:00", ReasonQuietHours},
		{"22:00", "07:00", ReasonFire},
		{"20:30", "07:00", ReasonQuietHours},
		{"19:00", "20:30", ReasonFire},
		{"20:00", "20:00", ReasonFire},
		{"", "", ReasonFire},
		{"bad", "07:00", ReasonFire},
	}
	for _, tc := range cases {
		in := baseInput()
		in.Preference.QuietHoursStart = tc.start
		in.Preference.QuietHoursEnd = tc.end
		if got := Evaluate(cfg, in); got != tc.want {
			t.Fatalf("quiet %s-%s reason=%s want=%s", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestShouldNotify_QuietHoursWrapMidnight(t *testing.T) {
	in := baseInput()
	in.Now = time.Date(2026, 3, 15, 8, 15, 0, 0, time.UTC) // 01:15 local
	in.Preference.QuietHoursStart = "22:00"
	in.Preference.QuietHoursEnd = "07:00"
	if got := Evaluate(config.DefaultPulseConfig(), in); got != ReasonQuietHours {
		t.Fatalf("reason=%s want=%s", got, ReasonQuietHours)
	}
}

func TestShouldNotify_Cooldown(t *testing.T) {
	cfg := config.DefaultPulseConfig()
	in := baseInput()
	last := nowUTC.Add(-3 * time.Hour)
	in.LastNotifiedAt = &last
	if got := Evaluate(cfg, in); got != ReasonCoolingDown {
		t.Fatalf("reason=%s want=%s", got, ReasonCoolingDown)
	}
	last = nowUTC.Add(-4 * time.Hour)
	in.LastNotifiedAt = &last
	if !ShouldNotify(cfg, in) {
		t.Fatalf("want fire once cooldown elapsed")
	}
}

func TestLocation_Fallbacks(t *testing.T) {
	if Location("Not/AZone") != time.UTC {
		t.Fatalf("unknown zone must fall back to UTC")
	}
	if Location("").String() != DefaultTimezone {
		t.Fatalf("empty zone=%s want=%s", Location("").String(), DefaultTimezone)
	}
}
