package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"pulse/internal/models"
	"pulse/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

// InUserTx serializes admission for one user with a transaction-scoped
// advisory lock keyed on the user id. The lock is released on commit/rollback.
func (s *Store) InUserTx(ctx context.Context, userID string, fn func(tx repository.SignalRepository) error) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Error; err != nil {
			return err
		}
		return fn(&Store{db: tx})
	})
}

// --- signals -----------------------------------------------------------------

func (s *Store) AppendSignal(ctx context.Context, item *models.Signal) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListSignalsByVenue(ctx context.Context, venueID string, since time.Time) ([]models.Signal, error) {
	return s.listSignals(ctx, "venue_id", venueID, since)
}

func (s *Store) ListSignalsByUser(ctx context.Context, userID string, since time.Time) ([]models.Signal, error) {
	return s.listSignals(ctx, "user_id", userID, since)
}

func (s *Store) listSignals(ctx context.Context, column, value string, since time.Time) ([]models.Signal, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var items []models.Signal
	err := s.db.WithContext(ctx).
		Model(&models.Signal{}).
		Where(column+" = ?", value).
		Where("occurred_at > ?", since).
		Order("occurred_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActiveVenueIDs(ctx context.Context, since time.Time) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Signal{}).
		Distinct("venue_id").
		Where("occurred_at > ?", since).
		Order("venue_id asc").
		Pluck("venue_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- venues ------------------------------------------------------------------

func (s *Store) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var item models.Venue
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Limit(1).Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListVenuesByIDs(ctx context.Context, ids []string) ([]models.Venue, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	ids = cleanStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Venue
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListVenueIDsNotInStatus(ctx context.Context, status string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Venue{}).
		Where("status <> ? OR display_status <> ?", status, status).
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) UpdateVenuePulse(ctx context.Context, update repository.VenuePulseUpdate) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	return s.db.WithContext(ctx).
		Model(&models.Venue{}).
		Where("id = ?", update.VenueID).
		Updates(map[string]any{
			"status":           update.Status,
			"score":            update.Score,
			"raw_score":        update.RawScore,
			"display_status":   update.DisplayStatus,
			"headcount":        update.Headcount,
			"last_computed_at": update.LastComputedAt,
		}).Error
}

// --- flash offers ------------------------------------------------------------

func (s *Store) ListActiveFlashOffers(ctx context.Context, venueID string, now time.Time) ([]models.FlashOffer, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var items []models.FlashOffer
	err := s.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Where("start_time <= ?", now).
		Where("end_time > ?", now).
		Order("end_time asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- alerts ------------------------------------------------------------------

func (s *Store) ListVenueFollowers(ctx context.Context, venueID string) ([]models.VenueFollow, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var items []models.VenueFollow
	if err := s.db.WithContext(ctx).Where("venue_id = ?", venueID).Order("user_id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUserPreferences(ctx context.Context, userIDs []string) ([]models.UserPreference, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	userIDs = cleanStrings(userIDs)
	if len(userIDs) == 0 {
		return nil, nil
	}
	var items []models.UserPreference
	if err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type lastNotifiedRow struct {
	UserID string
	Last   time.Time
}

func (s *Store) LastNotifiedAt(ctx context.Context, venueID string, userIDs []string, since time.Time) (map[string]time.Time, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	out := map[string]time.Time{}
	userIDs = cleanStrings(userIDs)
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []lastNotifiedRow
	err := s.db.WithContext(ctx).
		Model(&models.NotificationLog{}).
		Select("user_id, MAX(created_at) AS last").
		Where("venue_id = ?", venueID).
		Where("user_id IN ?", userIDs).
		Where("created_at > ?", since).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = r.Last
	}
	return out, nil
}

func (s *Store) InsertNotificationLog(ctx context.Context, item *models.NotificationLog) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
