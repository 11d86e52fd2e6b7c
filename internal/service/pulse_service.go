package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pulse/internal/admission"
	"pulse/internal/cache"
	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/offer"
	"pulse/internal/pulse"
	"pulse/internal/repository"
)

var ErrVenueNotFound = errors.New("venue not found")

type DealView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	EndTime          time.Time `json:"endTime"`
	MinutesRemaining float64   `json:"minutesRemaining"`
	Urgent           bool      `json:"urgent"`
}

// PulseView is the display shape of VenueCounterState plus live deals.
type PulseView struct {
	VenueID           string     `json:"venueId"`
	Status            string     `json:"status"`
	ComputedStatus    string     `json:"computedStatus"`
	ConfirmedStatus   *string    `json:"confirmedStatus,omitempty"`
	Hint              *string    `json:"hint,omitempty"`
	Saturation        float64    `json:"saturation"`
	Score             float64    `json:"score"`
	Capacity          int        `json:"capacity"`
	VerifiedHeadcount int        `json:"verifiedHeadcount"`
	ActiveDeals       []DealView `json:"activeDeals"`
	LastComputedAt    time.Time  `json:"lastComputedAt"`
}

// PulseService is the read path. Views are cached for CacheTTL; the cache is
// never authoritative.
type PulseService struct {
	Config    config.PulseConfig
	Repo      repository.Repository
	Cache     cache.Store
	CacheTTL  time.Duration
	KeyPrefix string
	Logger    *zap.Logger

	Now func() time.Time
}

func (s *PulseService) Get(ctx context.Context, venueID string) (PulseView, error) {
	venueID = strings.TrimSpace(venueID)
	if venueID == "" {
		return PulseView{}, ErrVenueNotFound
	}
	if s == nil || s.Repo == nil {
		return PulseView{}, fmt.Errorf("pulse: %w", admission.ErrStoreUnavailable)
	}
	var cached PulseView
	if ok, err := cache.GetJSON(ctx, s.Cache, s.cacheKey(venueID), &cached); err != nil {
		s.logger().Warn("pulse: cache get failed", zap.String("venue_id", venueID), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	venue, err := s.Repo.GetVenue(ctx, venueID)
	if err != nil {
		return PulseView{}, fmt.Errorf("pulse: get venue: %w: %w", admission.ErrStoreUnavailable, err)
	}
	if venue == nil {
		return PulseView{}, ErrVenueNotFound
	}
	view, _, err := s.Compute(ctx, *venue, s.now())
	if err != nil {
		return PulseView{}, err
	}
	s.store(ctx, view)
	return view, nil
}

// Compute evaluates a venue at now from the durable log.
func (s *PulseService) Compute(ctx context.Context, venue models.Venue, now time.Time) (PulseView, pulse.State, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	signals, err := s.Repo.ListSignalsByVenue(ctx, venue.ID, now.Add(-pulse.Lookback(s.Config)))
	if err != nil {
		return PulseView{}, pulse.State{}, fmt.Errorf("pulse: list signals: %w: %w", admission.ErrStoreUnavailable, err)
	}
	offers, err := s.Repo.ListActiveFlashOffers(ctx, venue.ID, now)
	if err != nil {
		return PulseView{}, pulse.State{}, fmt.Errorf("pulse: list offers: %w: %w", admission.ErrStoreUnavailable, err)
	}
	state := pulse.Evaluate(s.Config, venue.ID, venue.Capacity, signals, now)
	return buildView(state, offer.Rank(s.Config, offers, now)), state, nil
}

func buildView(state pulse.State, ranked []offer.RankedOffer) PulseView {
	view := PulseView{
		VenueID:           state.VenueID,
		Status:            state.Status.String(),
		ComputedStatus:    state.ComputedStatus.String(),
		Saturation:        state.Score.Saturation,
		Score:             state.Score.Raw,
		Capacity:          state.Score.Capacity,
		VerifiedHeadcount: state.Headcount(),
		ActiveDeals:       make([]DealView, 0, len(ranked)),
		LastComputedAt:    state.LastComputedAt,
	}
	if c := state.Consensus.Confirmed; c != nil {
		v := c.String()
		view.ConfirmedStatus = &v
	}
	if h := state.Consensus.Hint; h != nil {
		v := h.String()
		view.Hint = &v
	}
	for _, r := range ranked {
		view.ActiveDeals = append(view.ActiveDeals, DealView{
			ID:               r.Offer.ID,
			Title:            r.Offer.Title,
			EndTime:          r.Offer.EndTime,
			MinutesRemaining: r.MinutesRemaining,
			Urgent:           r.Urgent,
		})
	}
	return view
}

func (s *PulseService) store(ctx context.Context, view PulseView) {
	if err := cache.SetJSON(ctx, s.Cache, s.cacheKey(view.VenueID), view, s.CacheTTL); err != nil {
		s.logger().Warn("pulse: cache set failed", zap.String("venue_id", view.VenueID), zap.Error(err))
	}
}

func (s *PulseService) cacheKey(venueID string) string {
	return s.KeyPrefix + "venue_pulse:" + venueID
}

func (s *PulseService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Config.StoreTimeout)
}

func (s *PulseService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PulseService) logger() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
