package repository

import (
	"context"
	"time"

	"pulse/internal/models"
)

// SignalRepository is the append-only signal log. Every query is bounded by
// since so cost follows the active window, not total history.
type SignalRepository interface {
	AppendSignal(ctx context.Context, item *models.Signal) error
	ListSignalsByVenue(ctx context.Context, venueID string, since time.Time) ([]models.Signal, error)
	ListSignalsByUser(ctx context.Context, userID string, since time.Time) ([]models.Signal, error)
	ListActiveVenueIDs(ctx context.Context, since time.Time) ([]string, error)
}

// Repository is the full surface the pulse engine needs from persistence.
type Repository interface {
	SignalRepository

	// InUserTx runs fn with exclusive access to one user's signal history.
	// Reads and the append inside fn are atomic with respect to any other
	// InUserTx for the same user.
	InUserTx(ctx context.Context, userID string, fn func(tx SignalRepository) error) error

	// Venues (collaborator-owned; the engine writes only the pulse columns).
	GetVenue(ctx context.Context, id string) (*models.Venue, error)
	ListVenuesByIDs(ctx context.Context, ids []string) ([]models.Venue, error)
	// ListVenueIDsNotInStatus finds venues whose stored computed or display
	// status differs from status, so quiet venues still decay back down.
	ListVenueIDsNotInStatus(ctx context.Context, status string) ([]string, error)
	UpdateVenuePulse(ctx context.Context, update VenuePulseUpdate) error

	// Flash offers (read-only).
	ListActiveFlashOffers(ctx context.Context, venueID string, now time.Time) ([]models.FlashOffer, error)

	// Alerts.
	ListVenueFollowers(ctx context.Context, venueID string) ([]models.VenueFollow, error)
	ListUserPreferences(ctx context.Context, userIDs []string) ([]models.UserPreference, error)
	LastNotifiedAt(ctx context.Context, venueID string, userIDs []string, since time.Time) (map[string]time.Time, error)
	InsertNotificationLog(ctx context.Context, item *models.NotificationLog) error

	Ping(ctx context.Context) error
}

// VenuePulseUpdate keeps Status equal to the classification of Score.
type VenuePulseUpdate struct {
	VenueID        string
	Status         string
	Score          float64
	RawScore       float64
	DisplayStatus  string
	Headcount      int
	LastComputedAt time.Time
}
