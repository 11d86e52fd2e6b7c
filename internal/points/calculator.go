// Package points computes the loyalty award attached to an admitted signal.
package points

import (
	"github.com/shopspring/decimal"

	"pulse/internal/config"
)

// Award describes what a signal earned before persistence.
type Award struct {
	Base       int
	Bonus      int
	Multiplier decimal.Decimal
	Total      int
}

type Calculator struct {
	Config config.PointsConfig
}

// ClockIn awards the base clock-in value plus the marketing consent bonus.
func (c Calculator) ClockIn(consentMarketing bool) Award {
	bonus := 0
	if consentMarketing {
		bonus = c.Config.MarketingConsentBonus
	}
	return c.award(c.Config.ClockIn, bonus)
}

// VibeReport awards nothing when the report supersedes one that is still
// valid, so repeated reports cannot farm points.
func (c Calculator) VibeReport(gamesUpdated bool, supersedes bool) Award {
	if supersedes {
		return Award{Multiplier: c.multiplier()}
	}
	bonus := 0
	if gamesUpdated {
		bonus = c.Config.GamesUpdateBonus
	}
	return c.award(c.Config.VibeReport, bonus)
}

func (c Calculator) award(base, bonus int) Award {
	mult := c.multiplier()
	total := decimal.NewFromInt(int64(base + bonus)).Mul(mult).Round(0)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Award{
		Base:       base,
		Bonus:      bonus,
		Multiplier: mult,
		Total:      int(total.IntPart()),
	}
}

func (c Calculator) multiplier() decimal.Decimal {
	if c.Config.Multiplier <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(c.Config.Multiplier)
}
