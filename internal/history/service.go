// Package history tracks playback and reading progress keyed by the
// locator tokens sources hand out.
package history

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/eltik/anify-source/internal/database"
)

// Service provides progress history management
type Service struct {
	db *gorm.DB
}

// SortOrder defines the sorting order for history items
type SortOrder string

const (
	SortRecentFirst  SortOrder = "recent_first"
	SortOldestFirst  SortOrder = "oldest_first"
	SortTitleAsc     SortOrder = "title_asc"
	SortProgressDesc SortOrder = "progress_desc"
)

// FilterOptions defines filtering options for history queries
type FilterOptions struct {
	Kind        string // "video", "book", or empty for all
	SourceName  string
	SearchQuery string // matches against entry title
	Completed   *bool
	Limit       int
	Offset      int
	SortBy      SortOrder
}

// Stats represents aggregate progress statistics
type Stats struct {
	TotalItems     int64
	TotalWatchTime time.Duration
	VideoCount     int64
	BookCount      int64
	CompletedCount int64
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record upserts progress for a locator. An incomplete record for the
// same locator is updated in place; recording a completed entry removes
// any stale incomplete rows first.
func (s *Service) Record(p database.Progress) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	if !p.Completed {
		var existing database.Progress
		err := s.db.Where("locator = ? AND completed = false", p.Locator).
			Order("updated_at DESC").
			First(&existing).Error

		if err == nil {
			existing.PositionSeconds = p.PositionSeconds
			existing.DurationSeconds = p.DurationSeconds
			existing.Page = p.Page
			existing.TotalPages = p.TotalPages
			existing.Percent = p.Percent
			existing.UpdatedAt = time.Now()
			existing.SourceName = p.SourceName

			return s.db.Save(&existing).Error
		}
	}

	if p.Completed {
		s.db.Where("locator = ? AND completed = false", p.Locator).
			Delete(&database.Progress{})
	}

	p.UpdatedAt = time.Now()
	return s.db.Create(&p).Error
}

// List retrieves progress records with filtering and sorting
func (s *Service) List(filter FilterOptions) ([]database.Progress, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.Model(&database.Progress{})

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}

	if filter.SourceName != "" {
		query = query.Where("source_name = ?", filter.SourceName)
	}

	if filter.SearchQuery != "" {
		query = query.Where("entry_title LIKE ?", "%"+filter.SearchQuery+"%")
	}

	if filter.Completed != nil {
		query = query.Where("completed = ?", *filter.Completed)
	}

	switch filter.SortBy {
	case SortOldestFirst:
		query = query.Order("updated_at ASC")
	case SortTitleAsc:
		query = query.Order("entry_title ASC")
	case SortProgressDesc:
		query = query.Order("percent DESC")
	default: // SortRecentFirst
		query = query.Order("updated_at DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []database.Progress
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	return records, nil
}

// Resume returns the most recent incomplete record per entry, newest
// first.
func (s *Service) Resume(limit int) ([]database.Progress, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	sub := s.db.Model(&database.Progress{}).
		Select("MAX(id)").
		Where("completed = false").
		Group("entry_id")

	query := s.db.Where("id IN (?)", sub).Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []database.Progress
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch resume list: %w", err)
	}

	return records, nil
}

// DeleteByID removes a progress record by ID
func (s *Service) DeleteByID(id uint) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.Delete(&database.Progress{}, id).Error
}

// DeleteByEntryID removes all progress records for a catalog entry
func (s *Service) DeleteByEntryID(entryID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.Where("entry_id = ?", entryID).Delete(&database.Progress{}).Error
}

// MarkCompleted marks a progress record as completed
func (s *Service) MarkCompleted(id uint) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.Model(&database.Progress{}).Where("id = ?", id).Update("completed", true).Error
}

// GetStats retrieves aggregate progress statistics
func (s *Service) GetStats() (*Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var stats Stats

	if err := s.db.Model(&database.Progress{}).Count(&stats.TotalItems).Error; err != nil {
		return nil, err
	}

	var totalSeconds int64
	if err := s.db.Model(&database.Progress{}).Select("COALESCE(SUM(position_seconds), 0)").Scan(&totalSeconds).Error; err != nil {
		return nil, err
	}
	stats.TotalWatchTime = time.Duration(totalSeconds) * time.Second

	if err := s.db.Model(&database.Progress{}).Where("kind = ?", "video").Count(&stats.VideoCount).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&database.Progress{}).Where("kind = ?", "book").Count(&stats.BookCount).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&database.Progress{}).Where("completed = ?", true).Count(&stats.CompletedCount).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}

// Cleanup removes incomplete records older than 30 days
func (s *Service) Cleanup() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	return s.db.Where("completed = ? AND updated_at < ?", false, cutoff).Delete(&database.Progress{}).Error
}
