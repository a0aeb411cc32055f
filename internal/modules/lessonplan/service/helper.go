package service

import (
	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/modules/lessonplan/dto"
	resourceDto "github.com/improvdb/improvdb-api/internal/modules/resource/dto"
	commonDto "github.com/improvdb/improvdb-api/pkg/dto"
)

func commonPaginationMeta(page, limit int, total int64) commonDto.PaginationMeta {
	return commonDto.NewPaginationMeta(page, limit, total)
}

// itemDuration treats untimed items as zero minutes.
func itemDuration(item entity.LessonPlanItem) int {
	if item.Duration == nil {
		return 0
	}
	return *item.Duration
}

func planTotalDuration(plan *entity.LessonPlan) int {
	total := 0
	for _, sec := range plan.Sections {
		for _, item := range sec.Items {
			total += itemDuration(item)
		}
	}
	return total
}

func buildLessonPlanResponse(plan *entity.LessonPlan) *dto.LessonPlanResponse {
	sections := make([]dto.LessonPlanSectionResponse, 0, len(plan.Sections))
	for _, sec := range plan.Sections {
		sectionResp := dto.LessonPlanSectionResponse{
			ID:    sec.ID.String(),
			Title: sec.Title,
			Order: sec.Order,
			Items: make([]dto.LessonPlanItemResponse, 0, len(sec.Items)),
		}
		for _, item := range sec.Items {
			itemResp := dto.LessonPlanItemResponse{
				ID:       item.ID.String(),
				Order:    item.Order,
				Kind:     item.Kind,
				Text:     item.Text,
				Duration: item.Duration,
			}
			if item.Resource != nil {
				itemResp.Resource = &resourceDto.ResourceSummary{
					ID:            item.Resource.ID,
					Title:         item.Resource.Title,
					Type:          item.Resource.Type,
					Configuration: item.Resource.Configuration,
				}
			}
			sectionResp.Duration += itemDuration(item)
			sectionResp.Items = append(sectionResp.Items, itemResp)
		}
		sections = append(sections, sectionResp)
	}

	return &dto.LessonPlanResponse{
		ID:          plan.ID.String(),
		Title:       plan.Title,
		Theme:       plan.Theme,
		Description: plan.Description,
		UseDuration: plan.UseDuration,
		Visibility:  plan.Visibility,
		CreatedBy: resourceDto.AuthorResponse{
			ID:   plan.CreatedBy.ID.String(),
			Name: plan.CreatedBy.Name,
		},
		TotalDuration: planTotalDuration(plan),
		Sections:      sections,
		CreatedAt:     plan.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:     plan.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func buildLessonPlanSummaries(plans []*entity.LessonPlan) []dto.LessonPlanSummary {
	summaries := make([]dto.LessonPlanSummary, 0, len(plans))
	for _, plan := range plans {
		summaries = append(summaries, dto.LessonPlanSummary{
			ID:         plan.ID.String(),
			Title:      plan.Title,
			Theme:      plan.Theme,
			Visibility: plan.Visibility,
			CreatedBy: resourceDto.AuthorResponse{
				ID:   plan.CreatedBy.ID.String(),
				Name: plan.CreatedBy.Name,
			},
			TotalDuration: planTotalDuration(plan),
			CreatedAt:     plan.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return summaries
}
