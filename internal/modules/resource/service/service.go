package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/policy"
	categoryRepo "github.com/improvdb/improvdb-api/internal/modules/category/repository"
	notification "github.com/improvdb/improvdb-api/internal/modules/notification/service"
	resourceDto "github.com/improvdb/improvdb-api/internal/modules/resource/dto"
	repo "github.com/improvdb/improvdb-api/internal/modules/resource/repository"
	search "github.com/improvdb/improvdb-api/internal/modules/search/service"
	"github.com/improvdb/improvdb-api/pkg/apperror"
	commonDto "github.com/improvdb/improvdb-api/pkg/dto"
	"github.com/improvdb/improvdb-api/pkg/logger"
	"github.com/improvdb/improvdb-api/pkg/ratelimiter"
	"github.com/improvdb/improvdb-api/pkg/sanitize"
)

type Service interface {
	Create(ctx context.Context, p *policy.Principal, req resourceDto.CreateResourceRequest) (*resourceDto.ResourceDetailResponse, error)
	Update(ctx context.Context, p *policy.Principal, id string, req resourceDto.UpdateResourceRequest) (*resourceDto.ResourceDetailResponse, error)
	ProposeUpdate(ctx context.Context, p *policy.Principal, id string, req resourceDto.UpdateResourceRequest) (*resourceDto.ResourceDetailResponse, error)
	AcceptProposedUpdate(ctx context.Context, p *policy.Principal, proposalID string) (*resourceDto.ResourceDetailResponse, error)
	SetPublished(ctx context.Context, p *policy.Principal, id string, published bool) (*resourceDto.ResourceDetailResponse, error)
	Delete(ctx context.Context, p *policy.Principal, id string) error

	GetAll(ctx context.Context, filter resourceDto.ResourceFilter) (*resourceDto.PaginatedResourceResponse, error)
	GetLatest(ctx context.Context, limit int) ([]resourceDto.ResourceResponse, error)
	GetByID(ctx context.Context, p *policy.Principal, id string) (*resourceDto.ResourceDetailResponse, error)
	GetMine(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error)
	GetMyProposed(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error)
	GetPendingPublication(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error)
}

type service struct {
	resourceRepo repo.Repository
	categoryRepo categoryRepo.CategoryRepository
	limiter      ratelimiter.Limiter
	search       search.SearchService
	notifier     notification.Service
}

func NewService(
	resourceRepo repo.Repository,
	categoryRepo categoryRepo.CategoryRepository,
	limiter ratelimiter.Limiter,
	searchService search.SearchService,
	notifier notification.Service,
) Service {
	return &service{
		resourceRepo: resourceRepo,
		categoryRepo: categoryRepo,
		limiter:      limiter,
		search:       searchService,
		notifier:     notifier,
	}
}

func (s *service) Create(ctx context.Context, p *policy.Principal, req resourceDto.CreateResourceRequest) (*resourceDto.ResourceDetailResponse, error) {
	if p == nil {
		return nil, apperror.ErrUnauthorized
	}
	if err := s.checkRateLimit(ctx, p); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = slugFromTitle(req.Title)
	}
	if !slugPattern.MatchString(id) {
		return nil, fmt.Errorf("id must contain only lowercase letters and hyphens: %w", apperror.ErrInvalidInput)
	}

	exists, err := s.resourceRepo.ExistsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("a resource with id %q already exists: %w", id, apperror.ErrConflict)
	}

	resource := &entity.Resource{
		ID:               id,
		CreatedByID:      p.ID,
		AlternativeNames: joinAlternativeNames(req.AlternativeNames),
	}
	applyFields(resource, req.Title, req.Description, req.Type, req.Configuration)
	applyStatus(resource, entity.StatusDraft)

	// The client never dictates status directly; submit is the only legal
	// creation-time transition.
	if req.Submit && policy.CanTransition(entity.StatusDraft, entity.StatusPending, p) {
		applyStatus(resource, entity.StatusPending)
	}

	categories, err := s.categoryRepo.FindOrCreateByNames(ctx, req.Categories)
	if err != nil {
		return nil, err
	}
	resource.Categories = categories

	related, err := s.loadRelated(ctx, id, req.RelatedResourceIDs)
	if err != nil {
		return nil, err
	}
	resource.RelatedResources = related

	if err := s.resourceRepo.Create(ctx, resource); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, p, id)
}

func (s *service) Update(ctx context.Context, p *policy.Principal, id string, req resourceDto.UpdateResourceRequest) (*resourceDto.ResourceDetailResponse, error) {
	if p == nil {
		return nil, apperror.ErrUnauthorized
	}

	resource, err := s.loadResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateResource(resource, p, policy.IntentEdit) {
		return nil, mutationError(resource, p)
	}
	// Authorization first: rejected callers must not consume the write
	// window.
	if err := s.checkRateLimit(ctx, p); err != nil {
		return nil, err
	}

	applyFields(resource, req.Title, req.Description, req.Type, req.Configuration)
	resource.AlternativeNames = joinAlternativeNames(req.AlternativeNames)

	if req.Submit && policy.CanTransition(resource.PublicationStatus, entity.StatusPending, p) &&
		resource.PublicationStatus == entity.StatusDraft {
		applyStatus(resource, entity.StatusPending)
	}

	if err := s.resourceRepo.Update(ctx, resource); err != nil {
		return nil, err
	}

	categories, err := s.categoryRepo.FindOrCreateByNames(ctx, req.Categories)
	if err != nil {
		return nil, err
	}
	if err := s.resourceRepo.ReplaceCategories(ctx, resource, categories); err != nil {
		return nil, err
	}

	related, err := s.loadRelated(ctx, id, req.RelatedResourceIDs)
	if err != nil {
		return nil, err
	}
	if err := s.resourceRepo.ReplaceRelated(ctx, resource, related); err != nil {
		return nil, err
	}

	s.reindex(ctx, id)

	return s.GetByID(ctx, p, id)
}

// ProposeUpdate spawns a pending shadow copy of a published resource. The
// original stays published and untouched until an admin accepts the
// proposal.
func (s *service) ProposeUpdate(ctx context.Context, p *policy.Principal, id string, req resourceDto.UpdateResourceRequest) (*resourceDto.ResourceDetailResponse, error) {
	if p == nil {
		return nil, apperror.ErrUnauthorized
	}

	original, err := s.loadResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanProposeEditsTo(original, p) {
		if !policy.CanViewResource(original, p) {
			return nil, viewError(p)
		}
		return nil, fmt.Errorf("edit proposals can only target published resources: %w", apperror.ErrForbidden)
	}
	if err := s.checkRateLimit(ctx, p); err != nil {
		return nil, err
	}

	shadowID, err := s.proposalID(ctx, id)
	if err != nil {
		return nil, err
	}

	shadow := &entity.Resource{
		ID:                             shadowID,
		CreatedByID:                    p.ID,
		EditProposalOriginalResourceID: &original.ID,
		AlternativeNames:               joinAlternativeNames(req.AlternativeNames),
	}
	applyFields(shadow, req.Title, req.Description, req.Type, req.Configuration)
	applyStatus(shadow, entity.StatusPending)

	categories, err := s.categoryRepo.FindOrCreateByNames(ctx, req.Categories)
	if err != nil {
		return nil, err
	}
	shadow.Categories = categories

	related, err := s.loadRelated(ctx, shadowID, req.RelatedResourceIDs)
	if err != nil {
		return nil, err
	}
	shadow.RelatedResources = related

	if err := s.resourceRepo.Create(ctx, shadow); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go s.notifier.NotifyProposalSubmitted(context.Background(), shadow)
	}

	return s.GetByID(ctx, p, shadowID)
}

func (s *service) AcceptProposedUpdate(ctx context.Context, p *policy.Principal, proposalID string) (*resourceDto.ResourceDetailResponse, error) {
	shadow, err := s.loadResource(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !shadow.IsProposal() {
		return nil, fmt.Errorf("resource %q is not an edit proposal: %w", proposalID, apperror.ErrBadRequest)
	}
	if !policy.CanMutateResource(shadow, p, policy.IntentAcceptProposal) {
		return nil, fmt.Errorf("only admins can accept proposals: %w", apperror.ErrForbidden)
	}

	original, err := s.loadResource(ctx, *shadow.EditProposalOriginalResourceID)
	if err != nil {
		return nil, err
	}

	if err := s.resourceRepo.AcceptProposal(ctx, original, shadow); err != nil {
		return nil, err
	}

	s.reindex(ctx, original.ID)

	return s.GetByID(ctx, p, original.ID)
}

func (s *service) SetPublished(ctx context.Context, p *policy.Principal, id string, published bool) (*resourceDto.ResourceDetailResponse, error) {
	resource, err := s.loadResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateResource(resource, p, policy.IntentPublish) {
		return nil, fmt.Errorf("only admins can change publication state: %w", apperror.ErrForbidden)
	}

	target := entity.StatusPending
	if published {
		target = entity.StatusPublished
	}

	// Setting the current state again is a no-op, not an error.
	if resource.PublicationStatus == target {
		return s.GetByID(ctx, p, id)
	}

	if published && resource.IsProposal() {
		return nil, fmt.Errorf("proposals are merged, never published directly: %w", apperror.ErrBadRequest)
	}
	// Unpublishing demotes published work into the review queue; it is not
	// a way to submit somebody's draft.
	if !published && resource.PublicationStatus != entity.StatusPublished {
		return nil, fmt.Errorf("resource %q is not published: %w", id, apperror.ErrBadRequest)
	}
	if !policy.CanTransition(resource.PublicationStatus, target, p) {
		return nil, fmt.Errorf("illegal publication transition: %w", apperror.ErrForbidden)
	}

	applyStatus(resource, target)
	if err := s.resourceRepo.Update(ctx, resource); err != nil {
		return nil, err
	}

	if published {
		if s.notifier != nil {
			go s.notifier.NotifyResourcePublished(context.Background(), resource)
		}
		s.reindex(ctx, id)
	} else if s.search != nil {
		if err := s.search.DeleteResource(id); err != nil {
			logger.L().Warn("failed to remove resource from search index",
				zap.String("resource_id", id), zap.Error(err))
		}
	}

	return s.GetByID(ctx, p, id)
}

func (s *service) Delete(ctx context.Context, p *policy.Principal, id string) error {
	resource, err := s.loadResource(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanMutateResource(resource, p, policy.IntentDelete) {
		return mutationError(resource, p)
	}

	if err := s.resourceRepo.Delete(ctx, id); err != nil {
		return err
	}

	if s.search != nil {
		if err := s.search.DeleteResource(id); err != nil {
			logger.L().Warn("failed to remove resource from search index",
				zap.String("resource_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *service) GetAll(ctx context.Context, filter resourceDto.ResourceFilter) (*resourceDto.PaginatedResourceResponse, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	repoFilter := repo.ResourceFilter{
		Type:          filter.Type,
		Configuration: filter.Configuration,
		Query:         filter.Query,
	}
	if filter.Category != "" {
		categoryID, err := uuid.Parse(filter.Category)
		if err != nil {
			return nil, fmt.Errorf("invalid category id: %w", apperror.ErrBadRequest)
		}
		repoFilter.CategoryID = &categoryID
	}

	resources, total, err := s.resourceRepo.FindAll(ctx, repoFilter, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	return &resourceDto.PaginatedResourceResponse{
		Data: buildResourceResponses(resources),
		Meta: commonDto.NewPaginationMeta(page, limit, total),
	}, nil
}

func (s *service) GetLatest(ctx context.Context, limit int) ([]resourceDto.ResourceResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	resources, err := s.resourceRepo.FindLatest(ctx, limit)
	if err != nil {
		return nil, err
	}
	return buildResourceResponses(resources), nil
}

func (s *service) GetByID(ctx context.Context, p *policy.Principal, id string) (*resourceDto.ResourceDetailResponse, error) {
	resource, err := s.loadResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewResource(resource, p) {
		return nil, viewError(p)
	}

	inverse, err := s.resourceRepo.FindRelatedOf(ctx, id)
	if err != nil {
		return nil, err
	}
	// Links may point at drafts; hide those from callers who could not
	// read the draft directly.
	linked := append(resource.RelatedResources, inverse...)
	visible := make([]*entity.Resource, 0, len(linked))
	for _, r := range linked {
		if policy.CanViewResource(r, p) {
			visible = append(visible, r)
		}
	}
	related := buildResourceSummaries(visible)

	uses, err := s.resourceRepo.CountLessonPlanUses(ctx, id)
	if err != nil {
		return nil, err
	}

	return &resourceDto.ResourceDetailResponse{
		ResourceResponse:  buildResourceResponse(resource),
		RelatedResources:  related,
		UsedInLessonPlans: uses,
	}, nil
}

func (s *service) GetMine(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error) {
	if p == nil {
		return nil, apperror.ErrUnauthorized
	}
	resources, err := s.resourceRepo.FindByOwner(ctx, p.ID, false)
	if err != nil {
		return nil, err
	}
	return buildResourceResponses(resources), nil
}

func (s *service) GetMyProposed(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error) {
	if p == nil {
		return nil, apperror.ErrUnauthorized
	}
	resources, err := s.resourceRepo.FindByOwner(ctx, p.ID, true)
	if err != nil {
		return nil, err
	}
	return buildResourceResponses(resources), nil
}

func (s *service) GetPendingPublication(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("only admins can view the review queue: %w", apperror.ErrForbidden)
	}
	resources, err := s.resourceRepo.FindPendingPublication(ctx)
	if err != nil {
		return nil, err
	}
	return buildResourceResponses(resources), nil
}

func (s *service) loadResource(ctx context.Context, id string) (*entity.Resource, error) {
	resource, err := s.resourceRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("resource %q not found: %w", id, apperror.ErrNotFound)
		}
		return nil, err
	}
	return resource, nil
}

// loadRelated resolves related-resource ids, silently dropping unknown ids
// and self-references.
func (s *service) loadRelated(ctx context.Context, selfID string, ids []string) ([]*entity.Resource, error) {
	found, err := s.resourceRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	related := make([]*entity.Resource, 0, len(found))
	for _, r := range found {
		if r.ID != selfID {
			related = append(related, r)
		}
	}
	return related, nil
}

func applyFields(r *entity.Resource, title, description, resourceType, configuration string) {
	r.Title = title
	r.Description = sanitize.Markdown(description)
	r.Type = resourceType
	if resourceType == entity.ResourceTypeExercise {
		r.Configuration = configuration
	} else {
		r.Configuration = ""
	}
}

func (s *service) reindex(ctx context.Context, id string) {
	if s.search == nil {
		return
	}
	resource, err := s.resourceRepo.FindByID(ctx, id)
	if err != nil || !resource.Published {
		return
	}
	if err := s.search.IndexResource(resource); err != nil {
		logger.L().Warn("failed to index resource", zap.String("resource_id", id), zap.Error(err))
	}
}
