package dto

import (
	resourceDto "github.com/improvdb/improvdb-api/internal/modules/resource/dto"
	commonDto "github.com/improvdb/improvdb-api/pkg/dto"
)

// Items are a tagged variant: RESOURCE items carry a resource id, TEXT
// items carry free text. The kind decides which fields are required.
type LessonPlanItemRequest struct {
	Kind       string `json:"kind" binding:"required,oneof=RESOURCE TEXT"`
	Text       string `json:"text" binding:"omitempty,max=2000"`
	Duration   *int   `json:"duration" binding:"omitempty,min=0,max=600"`
	ResourceID string `json:"resource_id" binding:"omitempty,max=100"`
}

type LessonPlanSectionRequest struct {
	Title string                  `json:"title" binding:"omitempty,max=255"`
	Items []LessonPlanItemRequest `json:"items" binding:"omitempty,dive"`
}

type SaveLessonPlanRequest struct {
	Title       string                     `json:"title" binding:"required,min=2,max=255"`
	Theme       string                     `json:"theme" binding:"omitempty,max=255"`
	Description string                     `json:"description" binding:"omitempty,max=5000"`
	UseDuration bool                       `json:"use_duration"`
	Visibility  string                     `json:"visibility" binding:"required,oneof=PUBLIC UNLISTED PRIVATE"`
	Sections    []LessonPlanSectionRequest `json:"sections" binding:"omitempty,dive"`
}

type SetVisibilityRequest struct {
	Visibility string `json:"visibility" binding:"required,oneof=PUBLIC UNLISTED PRIVATE"`
}

type LessonPlanItemResponse struct {
	ID       string                       `json:"id"`
	Order    int                          `json:"order"`
	Kind     string                       `json:"kind"`
	Text     string                       `json:"text,omitempty"`
	Duration *int                         `json:"duration,omitempty"`
	Resource *resourceDto.ResourceSummary `json:"resource,omitempty"`
}

type LessonPlanSectionResponse struct {
	ID    string                   `json:"id"`
	Title string                   `json:"title"`
	Order int                      `json:"order"`
	// Duration is the sum of the section's item durations in minutes,
	// recomputed from current data on every read.
	Duration int                      `json:"duration"`
	Items    []LessonPlanItemResponse `json:"items"`
}

type LessonPlanResponse struct {
	ID            string                      `json:"id"`
	Title         string                      `json:"title"`
	Theme         string                      `json:"theme,omitempty"`
	Description   string                      `json:"description,omitempty"`
	UseDuration   bool                        `json:"use_duration"`
	Visibility    string                      `json:"visibility"`
	CreatedBy     resourceDto.AuthorResponse  `json:"created_by"`
	TotalDuration int                         `json:"total_duration"`
	Sections      []LessonPlanSectionResponse `json:"sections"`
	CreatedAt     string                      `json:"created_at"`
	UpdatedAt     string                      `json:"updated_at"`
}

type LessonPlanSummary struct {
	ID            string                     `json:"id"`
	Title         string                     `json:"title"`
	Theme         string                     `json:"theme,omitempty"`
	Visibility    string                     `json:"visibility"`
	CreatedBy     resourceDto.AuthorResponse `json:"created_by"`
	TotalDuration int                        `json:"total_duration"`
	CreatedAt     string                     `json:"created_at"`
}

type PaginatedLessonPlanResponse struct {
	Data []LessonPlanSummary      `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
