package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/improvdb/improvdb-api/internal/entity"
)

type FavouriteRepository interface {
	Add(ctx context.Context, userID uuid.UUID, resourceID string) error
	Remove(ctx context.Context, userID uuid.UUID, resourceID string) error
	Exists(ctx context.Context, userID uuid.UUID, resourceID string) (bool, error)
	FindResourcesByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Resource, error)
}

type favouriteRepository struct {
	db *gorm.DB
}

func NewFavouriteRepository(db *gorm.DB) FavouriteRepository {
	return &favouriteRepository{db: db}
}

// Add is idempotent: re-favouriting an already favourited resource is
// swallowed by the conflict clause.
func (r *favouriteRepository) Add(ctx context.Context, userID uuid.UUID, resourceID string) error {
	fav := entity.Favourite{UserID: userID, ResourceID: resourceID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fav).Error
}

func (r *favouriteRepository) Remove(ctx context.Context, userID uuid.UUID, resourceID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Delete(&entity.Favourite{}).Error
}

func (r *favouriteRepository) Exists(ctx context.Context, userID uuid.UUID, resourceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Favourite{}).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *favouriteRepository) FindResourcesByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Resource, error) {
	var resources []*entity.Resource
	err := r.db.WithContext(ctx).
		Joins("JOIN favourites ON favourites.resource_id = resources.id").
		Where("favourites.user_id = ?", userID).
		Preload("Categories").
		Preload("CreatedBy").
		Order("favourites.created_at DESC").
		Find(&resources).Error
	if err != nil {
		return nil, err
	}
	return resources, nil
}
