package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
)

type ResourceFilter struct {
	Type          string
	Configuration string
	CategoryID    *uuid.UUID
	Query         string
}

type Repository interface {
	Create(ctx context.Context, resource *entity.Resource) error
	Update(ctx context.Context, resource *entity.Resource) error
	ReplaceCategories(ctx context.Context, resource *entity.Resource, categories []entity.Category) error
	ReplaceRelated(ctx context.Context, resource *entity.Resource, related []*entity.Resource) error
	Delete(ctx context.Context, id string) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	FindByID(ctx context.Context, id string) (*entity.Resource, error)
	FindByIDs(ctx context.Context, ids []string) ([]*entity.Resource, error)
	FindAll(ctx context.Context, filter ResourceFilter, offset, limit int) ([]*entity.Resource, int64, error)
	FindLatest(ctx context.Context, limit int) ([]*entity.Resource, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, proposalsOnly bool) ([]*entity.Resource, error)
	FindPendingPublication(ctx context.Context) ([]*entity.Resource, error)
	FindRelatedOf(ctx context.Context, id string) ([]*entity.Resource, error)
	CountLessonPlanUses(ctx context.Context, id string) (int64, error)
	AcceptProposal(ctx context.Context, original, shadow *entity.Resource) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, resource *entity.Resource) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *repository) Update(ctx context.Context, resource *entity.Resource) error {
	// Save scalar columns only; associations are replaced explicitly.
	return r.db.WithContext(ctx).Omit("Categories", "RelatedResources", "CreatedBy").Save(resource).Error
}

func (r *repository) ReplaceCategories(ctx context.Context, resource *entity.Resource, categories []entity.Category) error {
	return r.db.WithContext(ctx).Model(resource).Association("Categories").Replace(&categories)
}

func (r *repository) ReplaceRelated(ctx context.Context, resource *entity.Resource, related []*entity.Resource) error {
	return r.db.WithContext(ctx).Model(resource).Association("RelatedResources").Replace(&related)
}

// Delete removes the resource together with its favourites, join rows and
// any proposal shadows still pointing at it. FK cascades vary by store, so
// the cleanup is explicit.
func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ?", id).Delete(&entity.Favourite{}).Error; err != nil {
			return err
		}

		var shadows []*entity.Resource
		if err := tx.Where("edit_proposal_original_resource_id = ?", id).Find(&shadows).Error; err != nil {
			return err
		}
		for _, shadow := range shadows {
			if err := clearAssociations(tx, shadow); err != nil {
				return err
			}
			if err := tx.Delete(shadow).Error; err != nil {
				return err
			}
		}

		resource := &entity.Resource{ID: id}
		if err := clearAssociations(tx, resource); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM resource_relations WHERE related_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(resource).Error
	})
}

func clearAssociations(tx *gorm.DB, resource *entity.Resource) error {
	if err := tx.Model(resource).Association("Categories").Clear(); err != nil {
		return err
	}
	return tx.Model(resource).Association("RelatedResources").Clear()
}

func (r *repository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Resource{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*entity.Resource, error) {
	var resource entity.Resource
	if err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("RelatedResources").
		Preload("CreatedBy").
		Where("id = ?", id).
		First(&resource).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []string) ([]*entity.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var resources []*entity.Resource
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *repository) publicQuery(ctx context.Context, filter ResourceFilter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&entity.Resource{}).
		Where("resources.published = ?", true).
		Where("resources.edit_proposal_original_resource_id IS NULL")

	if filter.Type != "" {
		query = query.Where("resources.type = ?", filter.Type)
	}
	if filter.Configuration != "" {
		query = query.Where("resources.configuration = ?", filter.Configuration)
	}
	if filter.Query != "" {
		// LOWER/LIKE instead of ILIKE so the query runs on both postgres
		// and the sqlite test store.
		query = query.Where("LOWER(resources.title) LIKE ?", "%"+strings.ToLower(filter.Query)+"%")
	}
	if filter.CategoryID != nil {
		query = query.
			Joins("JOIN resource_categories rc ON rc.resource_id = resources.id").
			Where("rc.category_id = ?", *filter.CategoryID)
	}

	return query
}

func (r *repository) FindAll(ctx context.Context, filter ResourceFilter, offset, limit int) ([]*entity.Resource, int64, error) {
	var total int64
	if err := r.publicQuery(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var resources []*entity.Resource
	if err := r.publicQuery(ctx, filter).
		Preload("Categories").
		Preload("CreatedBy").
		Order("resources.title ASC").
		Offset(offset).
		Limit(limit).
		Find(&resources).Error; err != nil {
		return nil, 0, err
	}

	return resources, total, nil
}

func (r *repository) FindLatest(ctx context.Context, limit int) ([]*entity.Resource, error) {
	var resources []*entity.Resource
	if err := r.publicQuery(ctx, ResourceFilter{}).
		Preload("Categories").
		Preload("CreatedBy").
		Order("resources.updated_at DESC").
		Limit(limit).
		Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerID uuid.UUID, proposalsOnly bool) ([]*entity.Resource, error) {
	query := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("CreatedBy").
		Where("created_by_id = ?", ownerID)

	if proposalsOnly {
		query = query.Where("edit_proposal_original_resource_id IS NOT NULL")
	} else {
		query = query.Where("edit_proposal_original_resource_id IS NULL")
	}

	var resources []*entity.Resource
	if err := query.Order("updated_at DESC").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// FindPendingPublication returns the admin review queue: everything in
// PENDING, which includes proposal shadows since those are created PENDING.
func (r *repository) FindPendingPublication(ctx context.Context) ([]*entity.Resource, error) {
	var resources []*entity.Resource
	if err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("CreatedBy").
		Where("publication_status = ?", entity.StatusPending).
		Order("updated_at ASC").
		Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// FindRelatedOf returns resources that point at id through the relation
// table. Together with the forward Preload this makes relatedness
// symmetric at read time without storing both directions.
func (r *repository) FindRelatedOf(ctx context.Context, id string) ([]*entity.Resource, error) {
	var resources []*entity.Resource
	if err := r.db.WithContext(ctx).
		Joins("JOIN resource_relations rr ON rr.resource_id = resources.id").
		Where("rr.related_id = ?", id).
		Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *repository) CountLessonPlanUses(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(DISTINCT s.lesson_plan_id)
		FROM lesson_plan_items i
		JOIN lesson_plan_sections s ON i.section_id = s.id
		WHERE i.resource_id = ?
	`, id).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AcceptProposal merges the shadow's mutable fields into the original and
// deletes the shadow, as one atomic unit. The original keeps its id, owner
// and PUBLISHED state.
func (r *repository) AcceptProposal(ctx context.Context, original, shadow *entity.Resource) error {
	if shadow.EditProposalOriginalResourceID == nil || *shadow.EditProposalOriginalResourceID != original.ID {
		return errors.New("shadow does not reference the original resource")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"title":             shadow.Title,
			"description":       shadow.Description,
			"type":              shadow.Type,
			"configuration":     shadow.Configuration,
			"alternative_names": shadow.AlternativeNames,
		}
		if err := tx.Model(&entity.Resource{ID: original.ID}).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Model(&entity.Resource{ID: original.ID}).
			Association("Categories").Replace(&shadow.Categories); err != nil {
			return err
		}

		// The shadow may list the original among its related resources;
		// a resource never relates to itself.
		related := make([]*entity.Resource, 0, len(shadow.RelatedResources))
		for _, rel := range shadow.RelatedResources {
			if rel.ID != original.ID {
				related = append(related, rel)
			}
		}
		if err := tx.Model(&entity.Resource{ID: original.ID}).
			Association("RelatedResources").Replace(&related); err != nil {
			return err
		}

		if err := clearAssociations(tx, shadow); err != nil {
			return err
		}
		return tx.Delete(shadow).Error
	})
}
