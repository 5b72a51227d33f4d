// Package history persists a record of every handled delivery so
// operators can audit what arrhook decided and why.
package history

import (
	"context"
	"fmt"

	"github.com/arrhook/arrhook/internal/database"
	"github.com/arrhook/arrhook/internal/models"
)

// Store reads and writes event history.
type Store struct {
	db *database.DB
}

// NewStore creates a history store over an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Record persists one event.
func (s *Store) Record(ctx context.Context, event *models.Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// Filter narrows a Recent query. Zero values match everything.
type Filter struct {
	Instance string
	Outcome  string
	Limit    int
}

// Recent returns events newest first.
func (s *Store) Recent(ctx context.Context, filter Filter) ([]models.Event, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Model(&models.Event{}).Order("created_at DESC").Limit(limit)
	if filter.Instance != "" {
		query = query.Where("instance = ?", filter.Instance)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// CountByOutcome returns how many events exist per outcome.
func (s *Store) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Outcome string
		Count   int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Select("outcome, count(*) as count").
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Outcome] = r.Count
	}
	return counts, nil
}
