// Package memory is an in-process Repository used by tests and by
// store.backend=memory deployments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pulse/internal/models"
	"pulse/internal/repository"
)

var ErrDuplicateID = errors.New("memory store: duplicate id")

type Store struct {
	mu sync.RWMutex

	signals       []models.Signal
	signalIDs     map[string]struct{}
	venues        map[string]models.Venue
	offers        []models.FlashOffer
	follows       []models.VenueFollow
	prefs         map[string]models.UserPreference
	notifications []models.NotificationLog

	userLocksMu sync.Mutex
	userLocks   map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		signalIDs: map[string]struct{}{},
		venues:    map[string]models.Venue{},
		prefs:     map[string]models.UserPreference{},
		userLocks: map[string]*sync.Mutex{},
	}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) userLock(userID string) *sync.Mutex {
	s.userLocksMu.Lock()
	defer s.userLocksMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

func (s *Store) InUserTx(ctx context.Context, userID string, fn func(tx repository.SignalRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()
	return fn(s)
}

func (s *Store) AppendSignal(ctx context.Context, item *models.Signal) error {
	if item == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signalIDs[item.ID]; ok {
		return ErrDuplicateID
	}
	s.signalIDs[item.ID] = struct{}{}
	s.signals = append(s.signals, *item)
	return nil
}

func (s *Store) ListSignalsByVenue(ctx context.Context, venueID string, since time.Time) ([]models.Signal, error) {
	return s.listSignals(ctx, since, func(sig models.Signal) bool { return sig.VenueID == venueID })
}

func (s *Store) ListSignalsByUser(ctx context.Context, userID string, since time.Time) ([]models.Signal, error) {
	return s.listSignals(ctx, since, func(sig models.Signal) bool { return sig.UserID == userID })
}

func (s *Store) listSignals(ctx context.Context, since time.Time, match func(models.Signal) bool) ([]models.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Signal
	for _, sig := range s.signals {
		if sig.Timestamp.After(since) && match(sig) {
			out = append(out, sig)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) ListActiveVenueIDs(ctx context.Context, since time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []string
	for _, sig := range s.signals {
		if !sig.Timestamp.After(since) {
			continue
		}
		if _, ok := seen[sig.VenueID]; ok {
			continue
		}
		seen[sig.VenueID] = struct{}{}
		out = append(out, sig.VenueID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *Store) ListVenuesByIDs(ctx context.Context, ids []string) ([]models.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Venue, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.venues[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) ListVenueIDsNotInStatus(ctx context.Context, status string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, v := range s.venues {
		if v.Status != status || v.DisplayStatus != status {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) UpdateVenuePulse(ctx context.Context, update repository.VenuePulseUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.venues[update.VenueID]
	if !ok {
		return nil
	}
	at := update.LastComputedAt
	v.Status = update.Status
	v.Score = update.Score
	v.RawScore = update.RawScore
	v.DisplayStatus = update.DisplayStatus
	v.Headcount = update.Headcount
	v.LastComputedAt = &at
	s.venues[update.VenueID] = v
	return nil
}

func (s *Store) ListActiveFlashOffers(ctx context.Context, venueID string, now time.Time) ([]models.FlashOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FlashOffer
	for _, o := range s.offers {
		if o.VenueID == venueID && !o.StartTime.After(now) && o.EndTime.After(now) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) ListVenueFollowers(ctx context.Context, venueID string) ([]models.VenueFollow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.VenueFollow
	for _, f := range s.follows {
		if f.VenueID == venueID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) ListUserPreferences(ctx context.Context, userIDs []string) ([]models.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UserPreference, 0, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.prefs[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) LastNotifiedAt(ctx context.Context, venueID string, userIDs []string, since time.Time) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := map[string]struct{}{}
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	out := map[string]time.Time{}
	for _, n := range s.notifications {
		if n.VenueID != venueID || !n.CreatedAt.After(since) {
			continue
		}
		if _, ok := want[n.UserID]; !ok {
			continue
		}
		if prev, ok := out[n.UserID]; !ok || n.CreatedAt.After(prev) {
			out[n.UserID] = n.CreatedAt
		}
	}
	return out, nil
}

func (s *Store) InsertNotificationLog(ctx context.Context, item *models.NotificationLog) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *item)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Seeding helpers stand in for the venue/user CRUD collaborators.

// PutVenue seeds a venue row, applying the column defaults for unset
// pulse labels.
func (s *Store) PutVenue(v models.Venue) {
	if v.Status == "" {
		v.Status = "mellow"
	}
	if v.DisplayStatus == "" {
		v.DisplayStatus = v.Status
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

func (s *Store) PutFlashOffer(o models.FlashOffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, o)
}

func (s *Store) PutFollow(f models.VenueFollow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows = append(s.follows, f)
}

func (s *Store) PutPreference(p models.UserPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.UserID] = p
}

// Notifications returns a copy of the outbox.
func (s *Store) Notifications() []models.NotificationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.NotificationLog, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// SignalCount reports the total number of stored signals.
func (s *Store) SignalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}
