package pulse

import "pulse/internal/config"

// Classify maps saturation onto a label using half-open intervals evaluated
// from the highest intensity down. A boundary value falls into the lower
// bucket, so exactly 0.85 is buzzing. NaN and negative input are mellow.
func Classify(th config.ThresholdConfig, saturation float64) StatusLabel {
	switch {
	case saturation > th.Packed:
		return StatusPacked
	case saturation > th.Buzzing:
		return StatusBuzzing
	case saturation > th.Chill:
		return StatusChill
	default:
		return StatusMellow
	}
}

// DisplayStatus prefers a confirmed consensus label over the computed one.
// The score itself is never adjusted.
func DisplayStatus(computed StatusLabel, c Consensus) StatusLabel {
	if c.Confirmed != nil {
		return *c.Confirmed
	}
	return computed
}
