// Package pulse turns a venue's recent signal log into a decayed score, a
// status label and a consensus view. Everything here is pure: callers pass
// the signals and the instant to evaluate at.
package pulse

import "strings"

type StatusLabel string

const (
	StatusMellow  StatusLabel = "mellow"
	StatusChill   StatusLabel = "chill"
	StatusBuzzing StatusLabel = "buzzing"
	StatusPacked  StatusLabel = "packed"
)

// legacyDead is accepted on input as an alias of mellow and never produced.
const legacyDead = "dead"

// Intensity orders labels: mellow < chill < buzzing < packed.
func (s StatusLabel) Intensity() int {
	switch s {
	case StatusPacked:
		return 3
	case StatusBuzzing:
		return 2
	case StatusChill:
		return 1
	default:
		return 0
	}
}

func (s StatusLabel) Valid() bool {
	switch s {
	case StatusMellow, StatusChill, StatusBuzzing, StatusPacked:
		return true
	}
	return false
}

func (s StatusLabel) String() string { return string(s) }

// ParseStatus normalizes client input. ok is false for unknown labels.
func ParseStatus(raw string) (StatusLabel, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == legacyDead {
		return StatusMellow, true
	}
	s := StatusLabel(v)
	if !s.Valid() {
		return "", false
	}
	return s, true
}
