package category

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
	categoryDto "github.com/improvdb/improvdb-api/internal/modules/category/dto"
	categoryRepo "github.com/improvdb/improvdb-api/internal/modules/category/repository"
	"github.com/improvdb/improvdb-api/pkg/apperror"
)

type Service interface {
	CreateCategory(ctx context.Context, req categoryDto.CreateCategoryRequest) (*categoryDto.CategoryResponse, error)
	GetAllCategories(ctx context.Context) ([]categoryDto.CategoryResponse, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type service struct {
	categoryRepo categoryRepo.CategoryRepository
}

func NewService(categoryRepo categoryRepo.CategoryRepository) Service {
	return &service{categoryRepo: categoryRepo}
}

func (s *service) CreateCategory(ctx context.Context, req categoryDto.CreateCategoryRequest) (*categoryDto.CategoryResponse, error) {
	name := strings.TrimSpace(req.Name)

	categories, err := s.categoryRepo.FindOrCreateByNames(ctx, []string{name})
	if err != nil {
		return nil, err
	}

	return &categoryDto.CategoryResponse{
		ID:   categories[0].ID.String(),
		Name: categories[0].Name,
	}, nil
}

func (s *service) GetAllCategories(ctx context.Context) ([]categoryDto.CategoryResponse, error) {
	categories, err := s.categoryRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]categoryDto.CategoryResponse, 0, len(categories))
	for _, c := range categories {
		responses = append(responses, categoryDto.CategoryResponse{
			ID:   c.ID.String(),
			Name: c.Name,
		})
	}
	return responses, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("category not found: %w", apperror.ErrNotFound)
		}
		return err
	}
	return s.categoryRepo.Delete(ctx, id)
}

// BuildCategoryResponses maps entities for embedding in resource payloads.
func BuildCategoryResponses(categories []entity.Category) []categoryDto.CategoryResponse {
	responses := make([]categoryDto.CategoryResponse, 0, len(categories))
	for _, c := range categories {
		responses = append(responses, categoryDto.CategoryResponse{
			ID:   c.ID.String(),
			Name: c.Name,
		})
	}
	return responses
}
