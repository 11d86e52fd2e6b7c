package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/notify"
	"pulse/internal/pulse"
	"pulse/internal/repository"
	"pulse/internal/stream"
)

type RefreshStats struct {
	Venues   int
	Changed  int
	Notified int
	Failed   int
}

// RefreshService recomputes every venue that has recent signals or a
// non-mellow stored status, writes the venue row, publishes changes and
// queues "packed" alerts for followers.
type RefreshService struct {
	Config config.PulseConfig
	Repo   repository.Repository
	Pulse  *PulseService
	Hub    *stream.Hub
	Logger *zap.Logger

	Now   func() time.Time
	NewID func() string
}

// Run is the cron job body.
func (s *RefreshService) Run(ctx context.Context) {
	if s == nil || s.Repo == nil || s.Pulse == nil {
		return
	}
	stats, err := s.RefreshAll(ctx)
	if err != nil {
		s.logger().Warn("refresh: failed", zap.Error(err))
		return
	}
	s.logger().Info("refresh: done",
		zap.Int("venues", stats.Venues),
		zap.Int("changed", stats.Changed),
		zap.Int("notified", stats.Notified),
		zap.Int("failed", stats.Failed),
	)
}

func (s *RefreshService) RefreshAll(ctx context.Context) (RefreshStats, error) {
	var stats RefreshStats
	now := s.now()

	active, err := s.Repo.ListActiveVenueIDs(ctx, now.Add(-pulse.Lookback(s.Config)))
	if err != nil {
		return stats, err
	}
	elevated, err := s.Repo.ListVenueIDsNotInStatus(ctx, pulse.StatusMellow.String())
	if err != nil {
		return stats, err
	}
	venues, err := s.Repo.ListVenuesByIDs(ctx, mergeIDs(active, elevated))
	if err != nil {
		return stats, err
	}

	for _, venue := range venues {
		stats.Venues++
		changed, notified, err := s.refreshVenue(ctx, venue, now)
		if err != nil {
			stats.Failed++
			s.logger().Warn("refresh: venue failed", zap.String("venue_id", venue.ID), zap.Error(err))
			continue
		}
		if changed {
			stats.Changed++
		}
		stats.Notified += notified
	}
	return stats, nil
}

func (s *RefreshService) refreshVenue(ctx context.Context, venue models.Venue, now time.Time) (bool, int, error) {
	view, state, err := s.Pulse.Compute(ctx, venue, now)
	if err != nil {
		return false, 0, err
	}
	// Alerts follow what users see, so the edge is on the display label.
	prev, ok := pulse.ParseStatus(venue.DisplayStatus)
	if !ok {
		prev = pulse.StatusMellow
	}

	err = s.Repo.UpdateVenuePulse(ctx, repository.VenuePulseUpdate{
		VenueID:        venue.ID,
		Status:         state.ComputedStatus.String(),
		Score:          state.Score.Saturation,
		RawScore:       state.Score.Raw,
		DisplayStatus:  state.Status.String(),
		Headcount:      state.Headcount(),
		LastComputedAt: now,
	})
	if err != nil {
		return false, 0, err
	}
	s.Pulse.store(ctx, view)

	if prev == state.Status {
		return false, 0, nil
	}
	if err := s.Hub.Publish(venue.ID, view); err != nil {
		s.logger().Warn("refresh: publish failed", zap.String("venue_id", venue.ID), zap.Error(err))
	}
	s.logger().Info("refresh: status changed",
		zap.String("venue_id", venue.ID),
		zap.String("from", prev.String()),
		zap.String("to", state.Status.String()),
		zap.Float64("saturation", state.Score.Saturation),
	)

	if state.Status != pulse.StatusPacked {
		return true, 0, nil
	}
	notified, err := s.notifyFollowers(ctx, venue, prev, state.Status, now)
	if err != nil {
		s.logger().Warn("refresh: notify failed", zap.String("venue_id", venue.ID), zap.Error(err))
	}
	return true, notified, nil
}

func (s *RefreshService) notifyFollowers(ctx context.Context, venue models.Venue, prev, next pulse.StatusLabel, now time.Time) (int, error) {
	follows, err := s.Repo.ListVenueFollowers(ctx, venue.ID)
	if err != nil || len(follows) == 0 {
		return 0, err
	}
	userIDs := make([]string, 0, len(follows))
	for _, f := range follows {
		userIDs = append(userIDs, f.UserID)
	}
	prefs, err := s.Repo.ListUserPreferences(ctx, userIDs)
	if err != nil {
		return 0, err
	}
	byUser := make(map[string]*models.UserPreference, len(prefs))
	for i := range prefs {
		byUser[prefs[i].UserID] = &prefs[i]
	}
	last, err := s.Repo.LastNotifiedAt(ctx, venue.ID, userIDs, now.Add(-s.Config.NotificationCooldown))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, userID := range userIDs {
		in := notify.Input{
			UserID:     userID,
			VenueID:    venue.ID,
			Previous:   prev,
			Next:       next,
			Preference: byUser[userID],
			Timezone:   venue.Timezone,
			Now:        now,
		}
		if at, ok := last[userID]; ok {
			in.LastNotifiedAt = &at
		}
		reason := notify.Evaluate(s.Config, in)
		if reason != notify.ReasonFire {
			s.logger().Debug("refresh: alert suppressed",
				zap.String("user_id", userID),
				zap.String("venue_id", venue.ID),
				zap.String("reason", string(reason)),
			)
			continue
		}
		item := &models.NotificationLog{
			ID:        s.newID(),
			UserID:    userID,
			VenueID:   venue.ID,
			Kind:      models.NotificationKindVenuePacked,
			Channel:   models.NotificationChannelPush,
			Status:    models.NotificationStatusPending,
			CreatedAt: now,
		}
		if err := s.Repo.InsertNotificationLog(ctx, item); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func mergeIDs(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func (s *RefreshService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RefreshService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *RefreshService) logger() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
