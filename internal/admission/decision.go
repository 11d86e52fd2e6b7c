// Package admission decides which crowd signals may count. Policy rejections
// are returned as Decision values; only malformed input and store failures
// are errors.
package admission

import "time"

type Reason string

const (
	ReasonRateLimitedSameVenue Reason = "rate_limited_same_venue"
	ReasonRateLimitedGlobal    Reason = "rate_limited_global"
	ReasonComplianceDenied     Reason = "compliance_denied"
)

type Decision struct {
	Accepted       bool
	Reason         Reason
	Message        string
	NextEligibleAt *time.Time

	// Vibe reports only.
	ValidUntil *time.Time
	Supersedes string
}

func (d Decision) RateLimited() bool {
	return d.Reason == ReasonRateLimitedSameVenue || d.Reason == ReasonRateLimitedGlobal
}

func accept() Decision { return Decision{Accepted: true} }

func reject(reason Reason, next *time.Time, msg string) Decision {
	return Decision{Reason: reason, Message: msg, NextEligibleAt: next}
}

func timePtr(t time.Time) *time.Time { return &t }
