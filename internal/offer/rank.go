// Package offer orders a venue's live flash offers by urgency.
package offer

import (
	"sort"
	"time"

	"pulse/internal/config"
	"pulse/internal/models"
)

type RankedOffer struct {
	Offer     models.FlashOffer
	Remaining time.Duration
	// MinutesRemaining is Remaining in fractional minutes.
	MinutesRemaining float64
	Urgent           bool
}

// Rank drops ended offers and returns urgent ones (ending within
// BuzzClockPriority) first, each group soonest-ending first, then by id.
// The input slice is not modified.
func Rank(cfg config.PulseConfig, offers []models.FlashOffer, now time.Time) []RankedOffer {
	out := make([]RankedOffer, 0, len(offers))
	for _, o := range offers {
		rem := o.EndTime.Sub(now)
		if rem <= 0 {
			continue
		}
		out = append(out, RankedOffer{
			Offer:            o,
			Remaining:        rem,
			MinutesRemaining: rem.Minutes(),
			Urgent:           rem <= cfg.BuzzClockPriority,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Urgent != b.Urgent {
			return a.Urgent
		}
		if a.Remaining != b.Remaining {
			return a.Remaining < b.Remaining
		}
		return a.Offer.ID < b.Offer.ID
	})
	return out
}
