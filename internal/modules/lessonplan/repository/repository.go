package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
)

type LessonPlanRepository interface {
	Create(ctx context.Context, plan *entity.LessonPlan) error
	// Replace saves the plan's scalar fields and swaps its entire
	// section tree for the given one inside a single transaction.
	Replace(ctx context.Context, plan *entity.LessonPlan, sections []entity.LessonPlanSection) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateVisibility(ctx context.Context, id uuid.UUID, visibility string) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.LessonPlan, error)
	FindPublic(ctx context.Context, offset, limit int) ([]*entity.LessonPlan, int64, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.LessonPlan, error)
	FindPublicIDs(ctx context.Context) ([]uuid.UUID, error)
}

type lessonPlanRepository struct {
	db *gorm.DB
}

func NewLessonPlanRepository(db *gorm.DB) LessonPlanRepository {
	return &lessonPlanRepository{db: db}
}

func (r *lessonPlanRepository) Create(ctx context.Context, plan *entity.LessonPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *lessonPlanRepository) Replace(ctx context.Context, plan *entity.LessonPlan, sections []entity.LessonPlanSection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sectionIDs := tx.Session(&gorm.Session{NewDB: true}).
			Model(&entity.LessonPlanSection{}).
			Select("id").
			Where("lesson_plan_id = ?", plan.ID)
		if err := tx.Where("section_id IN (?)", sectionIDs).Delete(&entity.LessonPlanItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lesson_plan_id = ?", plan.ID).Delete(&entity.LessonPlanSection{}).Error; err != nil {
			return err
		}
		if err := tx.Omit("Sections", "CreatedBy").Save(plan).Error; err != nil {
			return err
		}
		if len(sections) > 0 {
			if err := tx.Create(&sections).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *lessonPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sectionIDs := tx.Session(&gorm.Session{NewDB: true}).
			Model(&entity.LessonPlanSection{}).
			Select("id").
			Where("lesson_plan_id = ?", id)
		if err := tx.Where("section_id IN (?)", sectionIDs).Delete(&entity.LessonPlanItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lesson_plan_id = ?", id).Delete(&entity.LessonPlanSection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.LessonPlan{}, "id = ?", id).Error
	})
}

func (r *lessonPlanRepository) UpdateVisibility(ctx context.Context, id uuid.UUID, visibility string) error {
	return r.db.WithContext(ctx).
		Model(&entity.LessonPlan{}).
		Where("id = ?", id).
		Update("visibility", visibility).Error
}

func (r *lessonPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.LessonPlan, error) {
	var plan entity.LessonPlan
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Sections.Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Sections.Items.Resource").
		Preload("Sections.Items.Resource.CreatedBy").
		Preload("CreatedBy").
		First(&plan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *lessonPlanRepository) FindPublic(ctx context.Context, offset, limit int) ([]*entity.LessonPlan, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).
		Model(&entity.LessonPlan{}).
		Where("visibility = ?", entity.VisibilityPublic)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var plans []*entity.LessonPlan
	err := query.
		Preload("Sections.Items").
		Preload("CreatedBy").
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&plans).Error
	if err != nil {
		return nil, 0, err
	}
	return plans, total, nil
}

func (r *lessonPlanRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.LessonPlan, error) {
	var plans []*entity.LessonPlan
	err := r.db.WithContext(ctx).
		Preload("Sections.Items").
		Preload("CreatedBy").
		Where("created_by_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *lessonPlanRepository) FindPublicIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.LessonPlan{}).
		Where("visibility = ?", entity.VisibilityPublic).
		Order("updated_at DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
