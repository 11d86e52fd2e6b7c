package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/points"
	"pulse/internal/pulse"
	"pulse/internal/repository"
)

const maxIDLength = 100

type Request struct {
	Kind             string
	UserID           string
	VenueID          string
	ReportedStatus   string
	ConsentMarketing bool
	GamesUpdated     []string
}

type Result struct {
	Decision
	Signal *models.Signal
	// RetryAfter is NextEligibleAt measured from the decision time.
	RetryAfter time.Duration
}

// Eligibility is an advisory preview of the clock-in gate for UI countdowns.
type Eligibility struct {
	Allowed        bool
	Reason         Reason
	InWindow       int
	NextEligibleAt *time.Time
}

// Gate runs compliance, rate limiting and the append for one signal inside
// a per-user serialization scope.
type Gate struct {
	Config config.PulseConfig
	Points points.Calculator
	Repo   repository.Repository
	Logger *zap.Logger

	Now   func() time.Time
	NewID func() string
}

func (g *Gate) Submit(ctx context.Context, req Request) (Result, error) {
	req, err := normalize(req)
	if err != nil {
		return Result{}, err
	}
	if g == nil || g.Repo == nil {
		return Result{}, fmt.Errorf("admission: %w", ErrStoreUnavailable)
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var out Result
	err = g.Repo.InUserTx(ctx, req.UserID, func(tx repository.SignalRepository) error {
		now := g.now()
		history, err := tx.ListSignalsByUser(ctx, req.UserID, now.Add(-g.lookback()))
		if err != nil {
			return err
		}
		decision := g.decide(history, req, now)
		if !decision.Accepted {
			out = Result{Decision: decision}
			if decision.NextEligibleAt != nil {
				out.RetryAfter = decision.NextEligibleAt.Sub(now)
			}
			return nil
		}
		sig := g.buildSignal(req, decision, now)
		if err := tx.AppendSignal(ctx, sig); err != nil {
			return err
		}
		out = Result{Decision: decision, Signal: sig}
		return nil
	})
	if err != nil {
		g.logger().Warn("admission: store failure",
			zap.String("user_id", req.UserID),
			zap.String("venue_id", req.VenueID),
			zap.String("kind", req.Kind),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("admission: %w: %w", ErrStoreUnavailable, err)
	}

	if out.Accepted {
		g.logger().Info("admission: accepted",
			zap.String("signal_id", out.Signal.ID),
			zap.String("user_id", req.UserID),
			zap.String("venue_id", req.VenueID),
			zap.String("kind", req.Kind),
			zap.Int("points", out.Signal.PointsAwarded),
			zap.String("supersedes", out.Supersedes),
		)
	} else {
		g.logger().Debug("admission: rejected",
			zap.String("user_id", req.UserID),
			zap.String("venue_id", req.VenueID),
			zap.String("reason", string(out.Reason)),
		)
	}
	return out, nil
}

// Eligibility previews the clock-in gate without taking the user scope.
// venueID is optional; when set the same-venue cooldown is included.
func (g *Gate) Eligibility(ctx context.Context, userID, venueID string) (Eligibility, error) {
	userID = strings.TrimSpace(userID)
	venueID = strings.TrimSpace(venueID)
	if err := validateID("userId", userID); err != nil {
		return Eligibility{}, err
	}
	if venueID != "" {
		if err := validateID("venueId", venueID); err != nil {
			return Eligibility{}, err
		}
	}
	if g == nil || g.Repo == nil {
		return Eligibility{}, fmt.Errorf("admission: %w", ErrStoreUnavailable)
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	now := g.now()
	history, err := g.Repo.ListSignalsByUser(ctx, userID, now.Add(-g.lookback()))
	if err != nil {
		return Eligibility{}, fmt.Errorf("admission: %w: %w", ErrStoreUnavailable, err)
	}

	compliance := ComplianceGate{Config: g.Config}.Check(history, userID, now)
	out := Eligibility{Allowed: true, InWindow: compliance.InWindow}
	if !compliance.Allowed {
		out.Allowed = false
		out.Reason = ReasonComplianceDenied
		out.NextEligibleAt = compliance.NextEligibleAt
		return out, nil
	}
	rl := RateLimiter{Config: g.Config}.Admit(history, userID, venueID, models.SignalKindClockIn, now)
	if !rl.Accepted {
		out.Allowed = false
		out.Reason = rl.Reason
		out.NextEligibleAt = rl.NextEligibleAt
	}
	return out, nil
}

func (g *Gate) decide(history []models.Signal, req Request, now time.Time) Decision {
	if req.Kind == models.SignalKindClockIn {
		c := ComplianceGate{Config: g.Config}.Check(history, req.UserID, now)
		if !c.Allowed {
			return c.Decision(g.Config)
		}
	}
	return RateLimiter{Config: g.Config}.Admit(history, req.UserID, req.VenueID, req.Kind, now)
}

func (g *Gate) buildSignal(req Request, d Decision, now time.Time) *models.Signal {
	sig := &models.Signal{
		ID:               g.newID(),
		VenueID:          req.VenueID,
		UserID:           req.UserID,
		Kind:             req.Kind,
		ConsentMarketing: req.ConsentMarketing,
		Timestamp:        now,
	}
	switch req.Kind {
	case models.SignalKindClockIn:
		sig.Verified = true
		sig.PointsAwarded = g.Points.ClockIn(req.ConsentMarketing).Total
	case models.SignalKindVibeReport:
		status := req.ReportedStatus
		sig.ReportedStatus = &status
		if len(req.GamesUpdated) > 0 {
			if b, err := json.Marshal(req.GamesUpdated); err == nil {
				sig.GamesUpdated = datatypes.JSON(b)
			}
		}
		sig.PointsAwarded = g.Points.VibeReport(len(req.GamesUpdated) > 0, d.Supersedes != "").Total
	}
	return sig
}

// lookback covers every window the admission rules inspect.
func (g *Gate) lookback() time.Duration {
	d := g.Config.LCBWindow
	for _, w := range []time.Duration{g.Config.SameVenueThrottle, g.Config.ClockInThrottle, g.Config.VibeValidity} {
		if w > d {
			d = w
		}
	}
	return d
}

func (g *Gate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.Config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.Config.StoreTimeout)
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Gate) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.NewString()
}

func (g *Gate) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

func normalize(req Request) (Request, error) {
	req.Kind = strings.TrimSpace(req.Kind)
	req.UserID = strings.TrimSpace(req.UserID)
	req.VenueID = strings.TrimSpace(req.VenueID)
	if err := validateID("userId", req.UserID); err != nil {
		return req, err
	}
	if err := validateID("venueId", req.VenueID); err != nil {
		return req, err
	}
	switch req.Kind {
	case models.SignalKindClockIn:
		req.ReportedStatus = ""
		req.GamesUpdated = nil
	case models.SignalKindVibeReport:
		status, ok := pulse.ParseStatus(req.ReportedStatus)
		if !ok {
			return req, fmt.Errorf("%w: reportedStatus %q", ErrInvalidSignal, req.ReportedStatus)
		}
		req.ReportedStatus = status.String()
		req.GamesUpdated = cleanGames(req.GamesUpdated)
	default:
		return req, fmt.Errorf("%w: kind %q", ErrInvalidSignal, req.Kind)
	}
	return req, nil
}

// cleanGames trims names and drops blanks, keeping first-seen order.
func cleanGames(in []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, g := range in {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

func validateID(field, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidSignal, field)
	}
	if len(v) > maxIDLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidSignal, field, maxIDLength)
	}
	if strings.IndexFunc(v, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %s contains whitespace", ErrInvalidSignal, field)
	}
	return nil
}
