package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Contributor struct {
	UserID        string `gorm:"column:user_id"`
	Name          string `gorm:"column:name"`
	ResourceCount int64  `gorm:"column:resource_count"`
}

type SitemapEntry struct {
	ID        string    `gorm:"column:id"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

type StatRepository interface {
	TopContributors(ctx context.Context, limit int) ([]Contributor, error)
	PublishedResourceEntries(ctx context.Context) ([]SitemapEntry, error)
	PublicLessonPlanEntries(ctx context.Context) ([]SitemapEntry, error)
}

type statRepository struct {
	db *gorm.DB
}

func NewStatRepository(db *gorm.DB) StatRepository {
	return &statRepository{db: db}
}

// TopContributors counts published, non-proposal resources per author.
func (r *statRepository) TopContributors(ctx context.Context, limit int) ([]Contributor, error) {
	var contributors []Contributor
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.id AS user_id, u.name AS name, COUNT(r.id) AS resource_count
		FROM users u
		JOIN resources r ON r.created_by_id = u.id
		WHERE r.published = ? AND r.edit_proposal_original_resource_id IS NULL
		GROUP BY u.id, u.name
		ORDER BY resource_count DESC, u.name ASC
		LIMIT ?`, true, limit).Scan(&contributors).Error
	if err != nil {
		return nil, err
	}
	return contributors, nil
}

func (r *statRepository) PublishedResourceEntries(ctx context.Context) ([]SitemapEntry, error) {
	var entries []SitemapEntry
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, updated_at FROM resources
		WHERE published = ? AND edit_proposal_original_resource_id IS NULL
		ORDER BY updated_at DESC`, true).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *statRepository) PublicLessonPlanEntries(ctx context.Context) ([]SitemapEntry, error) {
	var entries []SitemapEntry
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, updated_at FROM lesson_plans
		WHERE visibility = ?
		ORDER BY updated_at DESC`, "PUBLIC").Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
