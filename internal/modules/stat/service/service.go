package service

import (
	"context"
	"fmt"

	"github.com/improvdb/improvdb-api/internal/modules/stat/repository"
	"github.com/improvdb/improvdb-api/pkg/apperror"
)

type ContributorResponse struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	ResourceCount int64  `json:"resource_count"`
}

type SitemapEntryResponse struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	UpdatedAt string `json:"updated_at"`
}

type StatService interface {
	GetTopContributors(ctx context.Context, limit int) ([]ContributorResponse, error)
	GetSitemapEntries(ctx context.Context) ([]SitemapEntryResponse, error)
}

type statService struct {
	repo repository.StatRepository
}

func NewStatService(repo repository.StatRepository) StatService {
	return &statService{repo: repo}
}

func (s *statService) GetTopContributors(ctx context.Context, limit int) ([]ContributorResponse, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	contributors, err := s.repo.TopContributors(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to aggregate contributors: %v", apperror.ErrInternal, err)
	}
	responses := make([]ContributorResponse, 0, len(contributors))
	for _, c := range contributors {
		responses = append(responses, ContributorResponse(c))
	}
	return responses, nil
}

// GetSitemapEntries lists everything publicly reachable: published
// resources and public lesson plans.
func (s *statService) GetSitemapEntries(ctx context.Context) ([]SitemapEntryResponse, error) {
	resources, err := s.repo.PublishedResourceEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list resource entries: %v", apperror.ErrInternal, err)
	}
	plans, err := s.repo.PublicLessonPlanEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list lesson plan entries: %v", apperror.ErrInternal, err)
	}

	entries := make([]SitemapEntryResponse, 0, len(resources)+len(plans))
	for _, e := range resources {
		entries = append(entries, SitemapEntryResponse{
			Kind:      "resource",
			ID:        e.ID,
			UpdatedAt: e.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	for _, e := range plans {
		entries = append(entries, SitemapEntryResponse{
			Kind:      "lesson_plan",
			ID:        e.ID,
			UpdatedAt: e.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return entries, nil
}
