package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/monorkin/particle-monitor/internal/models"
)

const dateLayout = "2006-01-02"

// Store reads and writes readings and aggregates. Every insert is its own
// commit.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveReading(ctx context.Context, reading *models.Reading) error {
	if err := s.db.WithContext(ctx).Create(reading).Error; err != nil {
		return fmt.Errorf("failed to save reading: %w", err)
	}

	return nil
}

func (s *Store) SaveAggregate(ctx context.Context, aggregate *models.Aggregate) error {
	if err := s.db.WithContext(ctx).Create(aggregate).Error; err != nil {
		return fmt.Errorf("failed to save aggregate: %w", err)
	}

	return nil
}

// AggregatesBetween returns the aggregates whose local calendar day falls in
// the inclusive range [first, last], oldest first.
func (s *Store) AggregatesBetween(ctx context.Context, first, last time.Time) ([]models.Aggregate, error) {
	var aggregates []models.Aggregate

	err := s.db.WithContext(ctx).
		Where("date(time) BETWEEN ? AND ?", first.Format(dateLayout), last.Format(dateLayout)).
		Order(`"key"`).
		Find(&aggregates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aggregates: %w", err)
	}

	return aggregates, nil
}

// AggregatesOn returns the aggregates of a single calendar day.
func (s *Store) AggregatesOn(ctx context.Context, date time.Time) ([]models.Aggregate, error) {
	return s.AggregatesBetween(ctx, date, date)
}

// LatestAggregate returns the newest aggregate, or nil when there is none.
func (s *Store) LatestAggregate(ctx context.Context) (*models.Aggregate, error) {
	var aggregate models.Aggregate

	err := s.db.WithContext(ctx).Order(`"key" DESC`).First(&aggregate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest aggregate: %w", err)
	}

	return &aggregate, nil
}

func (s *Store) ReadingsByPoll(ctx context.Context, pollID string) ([]models.Reading, error) {
	var readings []models.Reading

	err := s.db.WithContext(ctx).Where("poll_id = ?", pollID).Order(`"key"`).Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readings for poll %s: %w", pollID, err)
	}

	return readings, nil
}

func (s *Store) CountReadingsByPoll(ctx context.Context, pollID string) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&models.Reading{}).Where("poll_id = ?", pollID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count readings for poll %s: %w", pollID, err)
	}

	return count, nil
}
