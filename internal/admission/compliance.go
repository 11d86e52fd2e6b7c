package admission

import (
	"fmt"
	"sort"
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
)

// ComplianceResult is the LCB check-in frequency verdict for one user.
type ComplianceResult struct {
	Allowed        bool
	InWindow       int
	NextEligibleAt *time.Time
}

type ComplianceGate struct {
	Config config.PulseConfig
}

// Check counts the user's clock-ins at every venue inside the rolling window.
// It is always evaluated against durable history, never a cache.
func (g ComplianceGate) Check(history []models.Signal, userID string, now time.Time) ComplianceResult {
	since := now.Add(-g.Config.LCBWindow)
	var times []time.Time
	for _, s := range history {
		if s.UserID != userID || !s.IsClockIn() {
			continue
		}
		if s.Timestamp.After(since) {
			times = append(times, s.Timestamp)
		}
	}
	limit := g.Config.LCBMaxClockIns
	res := ComplianceResult{InWindow: len(times)}
	if len(times) < limit {
		res.Allowed = true
		return res
	}
	if limit <= 0 {
		return res
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	// Once this many of the oldest entries age out, the count drops below limit.
	res.NextEligibleAt = timePtr(times[len(times)-limit].Add(g.Config.LCBWindow))
	return res
}

func (r ComplianceResult) Decision(cfg config.PulseConfig) Decision {
	if r.Allowed {
		return accept()
	}
	msg := fmt.Sprintf("limit of %d clock-ins per %s reached", cfg.LCBMaxClockIns, cfg.LCBWindow)
	if r.NextEligibleAt != nil {
		msg += "; next eligible at " + r.NextEligibleAt.UTC().Format(time.RFC3339)
	}
	return reject(ReasonComplianceDenied, r.NextEligibleAt, msg)
}
