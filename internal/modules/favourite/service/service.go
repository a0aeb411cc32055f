package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/modules/favourite/repository"
	resourceDto "github.com/improvdb/improvdb-api/internal/modules/resource/dto"
	resourceRepo "github.com/improvdb/improvdb-api/internal/modules/resource/repository"
	resourceSvc "github.com/improvdb/improvdb-api/internal/modules/resource/service"
	"github.com/improvdb/improvdb-api/internal/policy"
	"github.com/improvdb/improvdb-api/pkg/apperror"
)

type FavouriteService interface {
	// Set makes the favourite relation match the requested state. Setting
	// an already-set state succeeds without change.
	Set(ctx context.Context, p *policy.Principal, resourceID string, favourite bool) (bool, error)
	IsFavourite(ctx context.Context, p *policy.Principal, resourceID string) (bool, error)
	GetMine(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error)
}

type favouriteService struct {
	favRepo repository.FavouriteRepository
	resRepo resourceRepo.Repository
}

func NewFavouriteService(favRepo repository.FavouriteRepository, resRepo resourceRepo.Repository) FavouriteService {
	return &favouriteService{favRepo: favRepo, resRepo: resRepo}
}

func (s *favouriteService) Set(ctx context.Context, p *policy.Principal, resourceID string, favourite bool) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("%w: authentication required", apperror.ErrUnauthorized)
	}
	res, err := s.loadResource(ctx, resourceID)
	if err != nil {
		return false, err
	}
	if !policy.CanViewResource(res, p) {
		return false, fmt.Errorf("%w: resource not found", apperror.ErrNotFound)
	}

	if favourite {
		err = s.favRepo.Add(ctx, p.ID, resourceID)
	} else {
		err = s.favRepo.Remove(ctx, p.ID, resourceID)
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to update favourite: %v", apperror.ErrInternal, err)
	}
	return favourite, nil
}

func (s *favouriteService) IsFavourite(ctx context.Context, p *policy.Principal, resourceID string) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("%w: authentication required", apperror.ErrUnauthorized)
	}
	exists, err := s.favRepo.Exists(ctx, p.ID, resourceID)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check favourite: %v", apperror.ErrInternal, err)
	}
	return exists, nil
}

func (s *favouriteService) GetMine(ctx context.Context, p *policy.Principal) ([]resourceDto.ResourceResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: authentication required", apperror.ErrUnauthorized)
	}
	resources, err := s.favRepo.FindResourcesByUser(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list favourites: %v", apperror.ErrInternal, err)
	}
	// Favourited resources can lose visibility later, for example when an
	// admin unpublishes them. Hide those instead of leaking them.
	visible := make([]*entity.Resource, 0, len(resources))
	for _, res := range resources {
		if policy.CanViewResource(res, p) {
			visible = append(visible, res)
		}
	}
	return resourceSvc.BuildResourceResponses(visible), nil
}

func (s *favouriteService) loadResource(ctx context.Context, id string) (*entity.Resource, error) {
	res, err := s.resRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: resource not found", apperror.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to load resource: %v", apperror.ErrInternal, err)
	}
	return res, nil
}
