package pulse

import (
	"math"
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
)

type Score struct {
	Raw        float64
	Saturation float64
	Capacity   int
}

// Decay returns weight * 0.5^(elapsed/halfLife).
func Decay(weight float64, elapsed, halfLife time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	if halfLife <= 0 {
		return weight
	}
	return weight * math.Pow(0.5, float64(elapsed)/float64(halfLife))
}

// EffectiveCapacity falls back to the configured default for unset venues.
func EffectiveCapacity(cfg config.PulseConfig, capacity int) int {
	if capacity > 0 {
		return capacity
	}
	if cfg.DefaultCapacity > 0 {
		return cfg.DefaultCapacity
	}
	return 1
}

// ComputeScore sums decayed contributions over BuzzHistory. Each clock-in
// user counts once, at their latest clock-in; every vibe report is one action.
// Signals stamped after now are ignored.
func ComputeScore(cfg config.PulseConfig, signals []models.Signal, capacity int, now time.Time) Score {
	since := now.Add(-cfg.BuzzHistory)
	latestClockIn := map[string]time.Time{}
	raw := 0.0
	for _, s := range signals {
		if !s.Timestamp.After(since) || s.Timestamp.After(now) {
			continue
		}
		switch s.Kind {
		case models.SignalKindClockIn:
			if prev, ok := latestClockIn[s.UserID]; !ok || s.Timestamp.After(prev) {
				latestClockIn[s.UserID] = s.Timestamp
			}
		case models.SignalKindVibeReport:
			raw += Decay(cfg.ActionWeight, now.Sub(s.Timestamp), cfg.DecayHalfLife)
		}
	}
	for _, ts := range latestClockIn {
		raw += Decay(cfg.HeadcountWeight, now.Sub(ts), cfg.DecayHalfLife)
	}
	capacity = EffectiveCapacity(cfg, capacity)
	return Score{
		Raw:        raw,
		Saturation: raw / float64(capacity),
		Capacity:   capacity,
	}
}
