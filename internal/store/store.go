package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ReadingRetention is how long sensor readings are kept before the retention
// janitor removes them.
const ReadingRetention = 90 * 24 * time.Hour

// Store exposes the narrow persistence operations the engines consume.
type Store struct {
	db *gorm.DB
}

// New wraps a gorm DB in a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ActiveSilos returns every active silo with its owner preloaded.
func (s *Store) ActiveSilos(ctx context.Context) ([]Silo, error) {
	var silos []Silo
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Where("is_active = ?", true).
		Find(&silos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active silos: %w", err)
	}
	return silos, nil
}

// CreateReading persists a sensor reading.
func (s *Store) CreateReading(ctx context.Context, reading *SensorReading) error {
	if err := s.db.WithContext(ctx).Create(reading).Error; err != nil {
		return fmt.Errorf("failed to create sensor reading: %w", err)
	}
	return nil
}

// UpdateLastReading refreshes the silo's denormalized latest-telemetry cache.
func (s *Store) UpdateLastReading(ctx context.Context, siloID uint, last LastReading) error {
	err := s.db.WithContext(ctx).
		Model(&Silo{}).
		Where("id = ?", siloID).
		Updates(map[string]any{
			"last_temperature":              last.Temperature,
			"last_humidity":                 last.Humidity,
			"last_co2":                      last.Co2,
			"last_o2":                       last.O2,
			"last_battery":                  last.Battery,
			"last_health_score":             last.HealthScore,
			"last_estimated_days_remaining": last.EstimatedDaysRemaining,
			"last_reading_at":               last.ReadingAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update last reading for silo %d: %w", siloID, err)
	}
	return nil
}

// HasRecentAlert reports whether an alert of the given type exists for the
// silo at or after the given instant. This backs the alert dedup window.
func (s *Store) HasRecentAlert(ctx context.Context, siloID uint, alertType string, since time.Time) (bool, error) {
	var alert Alert
	err := s.db.WithContext(ctx).
		Where("silo_id = ? AND type = ? AND created_at >= ?", siloID, alertType, since).
		Order("created_at DESC").
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query recent alerts for silo %d: %w", siloID, err)
	}
	return true, nil
}

// CreateAlert persists an alert.
func (s *Store) CreateAlert(ctx context.Context, alert *Alert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ReadingsSince returns the silo's readings created at or after the given
// instant, oldest first.
func (s *Store) ReadingsSince(ctx context.Context, siloID uint, since time.Time) ([]SensorReading, error) {
	var readings []SensorReading
	err := s.db.WithContext(ctx).
		Where("silo_id = ? AND created_at >= ?", siloID, since).
		Order("created_at ASC").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for silo %d: %w", siloID, err)
	}
	return readings, nil
}

// CreatePrediction persists a prediction.
func (s *Store) CreatePrediction(ctx context.Context, prediction *Prediction) error {
	if err := s.db.WithContext(ctx).Create(prediction).Error; err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

// CreateEventLog persists an event log entry.
func (s *Store) CreateEventLog(ctx context.Context, event *EventLog) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event log: %w", err)
	}
	return nil
}

// DeviceTokens returns the owner's registered push notification tokens.
func (s *Store) DeviceTokens(ctx context.Context, ownerID uint) ([]string, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user %d: %w", ownerID, err)
	}
	tokens := make([]string, 0, len(user.DeviceTokens))
	for _, t := range user.DeviceTokens {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

// UserByEmail returns the user with the given email, or nil if none exists.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user by email: %w", err)
	}
	return &user, nil
}

// CreateUser persists a user.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SiloCount returns how many silos the owner has.
func (s *Store) SiloCount(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Silo{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count silos for owner %d: %w", ownerID, err)
	}
	return count, nil
}

// CreateSilo persists a silo.
func (s *Store) CreateSilo(ctx context.Context, silo *Silo) error {
	if err := s.db.WithContext(ctx).Create(silo).Error; err != nil {
		return fmt.Errorf("failed to create silo: %w", err)
	}
	return nil
}

// PruneReadings deletes readings created before the cutoff and returns the
// number removed. Readings inside the retention window are never touched.
func (s *Store) PruneReadings(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&SensorReading{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", res.Error)
	}
	return res.RowsAffected, nil
}
