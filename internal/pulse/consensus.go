package pulse

import (
	"sort"
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
)

type Consensus struct {
	VerifiedHeadcount int

	// Confirmed is set only when enough unique users agreed within VibeWindow.
	Confirmed   *StatusLabel
	ConfirmedAt time.Time

	// Hint is the latest single report when nothing is confirmed.
	Hint   *StatusLabel
	HintAt time.Time
}

type vibeReport struct {
	userID string
	status StatusLabel
	at     time.Time
}

// Aggregate reduces a venue's recent signals to a headcount and, when the
// crowd agrees, a confirmed status.
func Aggregate(cfg config.PulseConfig, signals []models.Signal, now time.Time) Consensus {
	out := Consensus{VerifiedHeadcount: Headcount(cfg, signals, now)}

	reports := latestReportPerUser(cfg, signals, now)
	if len(reports) == 0 {
		return out
	}

	byStatus := map[StatusLabel][]vibeReport{}
	for _, r := range reports {
		byStatus[r.status] = append(byStatus[r.status], r)
	}

	var best *StatusLabel
	var bestAt time.Time
	for status, items := range byStatus {
		at, ok := consensusAt(items, cfg.VibeWindow, cfg.VibeReportsRequired)
		if !ok {
			continue
		}
		if best == nil || at.After(bestAt) || (at.Equal(bestAt) && status.Intensity() > best.Intensity()) {
			s := status
			best = &s
			bestAt = at
		}
	}
	if best != nil {
		out.Confirmed = best
		out.ConfirmedAt = bestAt
		return out
	}

	latest := reports[0]
	for _, r := range reports[1:] {
		if r.at.After(latest.at) || (r.at.Equal(latest.at) && r.status.Intensity() > latest.status.Intensity()) {
			latest = r
		}
	}
	hint := latest.status
	out.Hint = &hint
	out.HintAt = latest.at
	return out
}

// Headcount counts unique users with a clock-in inside LiveHeadcountWindow.
func Headcount(cfg config.PulseConfig, signals []models.Signal, now time.Time) int {
	since := now.Add(-cfg.LiveHeadcountWindow)
	users := map[string]struct{}{}
	for _, s := range signals {
		if !s.IsClockIn() || !s.Timestamp.After(since) || s.Timestamp.After(now) {
			continue
		}
		users[s.UserID] = struct{}{}
	}
	return len(users)
}

// latestReportPerUser keeps each user's newest still-valid report; a newer
// report supersedes older ones.
func latestReportPerUser(cfg config.PulseConfig, signals []models.Signal, now time.Time) []vibeReport {
	since := now.Add(-cfg.VibeValidity)
	latest := map[string]vibeReport{}
	for _, s := range signals {
		if !s.IsVibeReport() || s.ReportedStatus == nil {
			continue
		}
		if !s.Timestamp.After(since) || s.Timestamp.After(now) {
			continue
		}
		status, ok := ParseStatus(*s.ReportedStatus)
		if !ok {
			continue
		}
		if prev, ok := latest[s.UserID]; ok && !s.Timestamp.After(prev.at) {
			continue
		}
		latest[s.UserID] = vibeReport{userID: s.UserID, status: status, at: s.Timestamp}
	}
	out := make([]vibeReport, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].at.Equal(out[j].at) {
			return out[i].userID < out[j].userID
		}
		return out[i].at.Before(out[j].at)
	})
	return out
}

// consensusAt returns the latest report time that closes a window of at
// least required unique reporters. items hold one report per user.
func consensusAt(items []vibeReport, window time.Duration, required int) (time.Time, bool) {
	if required < 1 {
		required = 1
	}
	if len(items) < required {
		return time.Time{}, false
	}
	sort.Slice(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })
	var found time.Time
	ok := false
	start := 0
	for end := range items {
		for items[end].at.Sub(items[start].at) > window {
			start++
		}
		if end-start+1 >= required {
			found = items[end].at
			ok = true
		}
	}
	return found, ok
}
