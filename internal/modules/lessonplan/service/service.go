package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/modules/lessonplan/dto"
	"github.com/improvdb/improvdb-api/internal/modules/lessonplan/repository"
	resourceRepo "github.com/improvdb/improvdb-api/internal/modules/resource/repository"
	"github.com/improvdb/improvdb-api/internal/policy"
	"github.com/improvdb/improvdb-api/pkg/apperror"
	"github.com/improvdb/improvdb-api/pkg/ratelimiter"
	"github.com/improvdb/improvdb-api/pkg/sanitize"
)

type LessonPlanService interface {
	Create(ctx context.Context, p *policy.Principal, req *dto.SaveLessonPlanRequest) (*dto.LessonPlanResponse, error)
	Update(ctx context.Context, p *policy.Principal, id uuid.UUID, req *dto.SaveLessonPlanRequest) (*dto.LessonPlanResponse, error)
	Delete(ctx context.Context, p *policy.Principal, id uuid.UUID) error
	SetVisibility(ctx context.Context, p *policy.Principal, id uuid.UUID, visibility string) (*dto.LessonPlanResponse, error)
	GetByID(ctx context.Context, p *policy.Principal, id uuid.UUID) (*dto.LessonPlanResponse, error)
	GetPublic(ctx context.Context, page, limit int) (*dto.PaginatedLessonPlanResponse, error)
	GetMine(ctx context.Context, p *policy.Principal) ([]dto.LessonPlanSummary, error)
}

type lessonPlanService struct {
	planRepo     repository.LessonPlanRepository
	resourceRepo resourceRepo.Repository
	limiter      ratelimiter.Limiter
}

func NewLessonPlanService(
	planRepo repository.LessonPlanRepository,
	resRepo resourceRepo.Repository,
	limiter ratelimiter.Limiter,
) LessonPlanService {
	return &lessonPlanService{
		planRepo:     planRepo,
		resourceRepo: resRepo,
		limiter:      limiter,
	}
}

func (s *lessonPlanService) Create(ctx context.Context, p *policy.Principal, req *dto.SaveLessonPlanRequest) (*dto.LessonPlanResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: authentication required", apperror.ErrUnauthorized)
	}
	if err := s.checkRateLimit(ctx, p); err != nil {
		return nil, err
	}

	plan := &entity.LessonPlan{
		Title:       req.Title,
		Theme:       req.Theme,
		Description: sanitize.Markdown(req.Description),
		UseDuration: req.UseDuration,
		Visibility:  req.Visibility,
		CreatedByID: p.ID,
	}
	sections, err := s.buildSections(ctx, uuid.Nil, req.Sections)
	if err != nil {
		return nil, err
	}
	plan.Sections = sections

	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("%w: failed to create lesson plan: %v", apperror.ErrInternal, err)
	}
	return s.GetByID(ctx, p, plan.ID)
}

func (s *lessonPlanService) Update(ctx context.Context, p *policy.Principal, id uuid.UUID, req *dto.SaveLessonPlanRequest) (*dto.LessonPlanResponse, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateLessonPlan(plan, p) {
		return nil, s.mutationError(p, plan)
	}
	if err := s.checkRateLimit(ctx, p); err != nil {
		return nil, err
	}

	plan.Title = req.Title
	plan.Theme = req.Theme
	plan.Description = sanitize.Markdown(req.Description)
	plan.UseDuration = req.UseDuration
	plan.Visibility = req.Visibility

	sections, err := s.buildSections(ctx, plan.ID, req.Sections)
	if err != nil {
		return nil, err
	}
	if err := s.planRepo.Replace(ctx, plan, sections); err != nil {
		return nil, fmt.Errorf("%w: failed to update lesson plan: %v", apperror.ErrInternal, err)
	}
	return s.GetByID(ctx, p, plan.ID)
}

func (s *lessonPlanService) Delete(ctx context.Context, p *policy.Principal, id uuid.UUID) error {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanMutateLessonPlan(plan, p) {
		return s.mutationError(p, plan)
	}
	if err := s.planRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: failed to delete lesson plan: %v", apperror.ErrInternal, err)
	}
	return nil
}

func (s *lessonPlanService) SetVisibility(ctx context.Context, p *policy.Principal, id uuid.UUID, visibility string) (*dto.LessonPlanResponse, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateLessonPlan(plan, p) {
		return nil, s.mutationError(p, plan)
	}
	// Setting the current visibility again is a no-op, not an error.
	if plan.Visibility != visibility {
		if err := s.planRepo.UpdateVisibility(ctx, id, visibility); err != nil {
			return nil, fmt.Errorf("%w: failed to update visibility: %v", apperror.ErrInternal, err)
		}
	}
	return s.GetByID(ctx, p, id)
}

func (s *lessonPlanService) GetByID(ctx context.Context, p *policy.Principal, id uuid.UUID) (*dto.LessonPlanResponse, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewLessonPlan(plan, p) {
		// Private plans do not reveal their existence.
		return nil, fmt.Errorf("%w: lesson plan not found", apperror.ErrNotFound)
	}
	return buildLessonPlanResponse(plan), nil
}

func (s *lessonPlanService) GetPublic(ctx context.Context, page, limit int) (*dto.PaginatedLessonPlanResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	plans, total, err := s.planRepo.FindPublic(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list lesson plans: %v", apperror.ErrInternal, err)
	}
	return &dto.PaginatedLessonPlanResponse{
		Data: buildLessonPlanSummaries(plans),
		Meta: commonPaginationMeta(page, limit, total),
	}, nil
}

func (s *lessonPlanService) GetMine(ctx context.Context, p *policy.Principal) ([]dto.LessonPlanSummary, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: authentication required", apperror.ErrUnauthorized)
	}
	plans, err := s.planRepo.FindByOwner(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list lesson plans: %v", apperror.ErrInternal, err)
	}
	return buildLessonPlanSummaries(plans), nil
}

func (s *lessonPlanService) loadPlan(ctx context.Context, id uuid.UUID) (*entity.LessonPlan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lesson plan not found", apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to load lesson plan: %v", apperror.ErrInternal, err)
	}
	return plan, nil
}

// mutationError keeps hidden plans hidden: callers who may not even see
// the plan get a not-found, visible non-owners get a forbidden.
func (s *lessonPlanService) mutationError(p *policy.Principal, plan *entity.LessonPlan) error {
	if !policy.CanViewLessonPlan(plan, p) {
		return fmt.Errorf("%w: lesson plan not found", apperror.ErrNotFound)
	}
	return fmt.Errorf("%w: you do not own this lesson plan", apperror.ErrForbidden)
}

func (s *lessonPlanService) checkRateLimit(ctx context.Context, p *policy.Principal) error {
	if s.limiter == nil || p.IsAdmin() {
		return nil
	}
	allowed, retryAfter, err := s.limiter.Allow(ctx, ratelimiter.UserKey(p.ID))
	if err != nil {
		return fmt.Errorf("%w: rate limiter unavailable: %v", apperror.ErrInternal, err)
	}
	if !allowed {
		return &ratelimiter.RateLimitError{
			Message:    "too many write operations, slow down",
			RetryAfter: retryAfter,
		}
	}
	return nil
}

// buildSections turns the request tree into entities, assigning dense
// order values from array position and checking the item kind contract.
func (s *lessonPlanService) buildSections(ctx context.Context, planID uuid.UUID, reqs []dto.LessonPlanSectionRequest) ([]entity.LessonPlanSection, error) {
	resourceIDs := make([]string, 0)
	for _, sec := range reqs {
		for _, item := range sec.Items {
			if item.Kind == entity.ItemKindResource {
				resourceIDs = append(resourceIDs, item.ResourceID)
			}
		}
	}
	known := make(map[string]bool, len(resourceIDs))
	if len(resourceIDs) > 0 {
		resources, err := s.resourceRepo.FindByIDs(ctx, resourceIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to resolve resources: %v", apperror.ErrInternal, err)
		}
		for _, res := range resources {
			known[res.ID] = true
		}
	}

	sections := make([]entity.LessonPlanSection, 0, len(reqs))
	for si, sec := range reqs {
		section := entity.LessonPlanSection{
			LessonPlanID: planID,
			Title:        sec.Title,
			Order:        si,
		}
		for ii, item := range sec.Items {
			switch item.Kind {
			case entity.ItemKindResource:
				if item.ResourceID == "" {
					return nil, fmt.Errorf("%w: resource items require a resource_id", apperror.ErrInvalidInput)
				}
				if !known[item.ResourceID] {
					return nil, fmt.Errorf("%w: unknown resource %q", apperror.ErrInvalidInput, item.ResourceID)
				}
			case entity.ItemKindText:
				if item.Text == "" {
					return nil, fmt.Errorf("%w: text items require text", apperror.ErrInvalidInput)
				}
			}
			entityItem := entity.LessonPlanItem{
				Order:    ii,
				Kind:     item.Kind,
				Text:     item.Text,
				Duration: item.Duration,
			}
			if item.Kind == entity.ItemKindResource {
				rid := item.ResourceID
				entityItem.ResourceID = &rid
			}
			section.Items = append(section.Items, entityItem)
		}
		sections = append(sections, section)
	}
	return sections, nil
}
