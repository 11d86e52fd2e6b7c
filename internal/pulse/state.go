package pulse

import (
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
)

// State is the derived VenueCounterState. Status is the display label;
// ComputedStatus is always Classify(Score.Saturation).
type State struct {
	VenueID        string
	Score          Score
	ComputedStatus StatusLabel
	Status         StatusLabel
	Consensus      Consensus
	LastComputedAt time.Time
}

func (s State) Headcount() int { return s.Consensus.VerifiedHeadcount }

// Evaluate runs aggregation, scoring and classification over one venue's log.
func Evaluate(cfg config.PulseConfig, venueID string, capacity int, signals []models.Signal, now time.Time) State {
	score := ComputeScore(cfg, signals, capacity, now)
	consensus := Aggregate(cfg, signals, now)
	computed := Classify(cfg.Thresholds, score.Saturation)
	return State{
		VenueID:        venueID,
		Score:          score,
		ComputedStatus: computed,
		Status:         DisplayStatus(computed, consensus),
		Consensus:      consensus,
		LastComputedAt: now,
	}
}

// Lookback is how far back a read path must query to evaluate a venue.
func Lookback(cfg config.PulseConfig) time.Duration {
	d := cfg.BuzzHistory
	for _, w := range []time.Duration{cfg.LiveHeadcountWindow, cfg.VibeValidity} {
		if w > d {
			d = w
		}
	}
	return d
}
