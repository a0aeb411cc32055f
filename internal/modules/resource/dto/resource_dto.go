package dto

import (
	categoryDto "github.com/improvdb/improvdb-api/internal/modules/category/dto"
	commonDto "github.com/improvdb/improvdb-api/pkg/dto"
)

type CreateResourceRequest struct {
	// Optional; derived from the title when empty. Either way the server
	// validates format and uniqueness itself.
	ID                 string   `json:"id" binding:"omitempty,max=100"`
	Title              string   `json:"title" binding:"required,min=2,max=255"`
	Description        string   `json:"description" binding:"required"`
	Type               string   `json:"type" binding:"required,oneof=EXERCISE SHORT_FORM LONG_FORM"`
	Configuration      string   `json:"configuration" binding:"omitempty,oneof=SCENE BACKLINE WHOLE_CLASS SOLO PAIRS GROUPS CIRCLE"`
	AlternativeNames   []string `json:"alternative_names" binding:"omitempty,dive,min=1,max=100"`
	Categories         []string `json:"categories" binding:"omitempty,dive,min=1,max=100"`
	RelatedResourceIDs []string `json:"related_resource_ids" binding:"omitempty,dive,min=1,max=100"`
	// Submit sends the resource straight to the review queue instead of
	// keeping it a draft.
	Submit bool `json:"submit"`
}

type UpdateResourceRequest struct {
	Title              string   `json:"title" binding:"required,min=2,max=255"`
	Description        string   `json:"description" binding:"required"`
	Type               string   `json:"type" binding:"required,oneof=EXERCISE SHORT_FORM LONG_FORM"`
	Configuration      string   `json:"configuration" binding:"omitempty,oneof=SCENE BACKLINE WHOLE_CLASS SOLO PAIRS GROUPS CIRCLE"`
	AlternativeNames   []string `json:"alternative_names" binding:"omitempty,dive,min=1,max=100"`
	Categories         []string `json:"categories" binding:"omitempty,dive,min=1,max=100"`
	RelatedResourceIDs []string `json:"related_resource_ids" binding:"omitempty,dive,min=1,max=100"`
	Submit             bool     `json:"submit"`
}

type SetPublishedRequest struct {
	Published *bool `json:"published" binding:"required"`
}

type ResourceFilter struct {
	Type          string `form:"type" binding:"omitempty,oneof=EXERCISE SHORT_FORM LONG_FORM"`
	Configuration string `form:"configuration" binding:"omitempty,oneof=SCENE BACKLINE WHOLE_CLASS SOLO PAIRS GROUPS CIRCLE"`
	Category      string `form:"category"`
	Query         string `form:"q"`
	Page          int    `form:"page"`
	Limit         int    `form:"limit"`
}

type AuthorResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ResourceSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	Configuration string `json:"configuration,omitempty"`
}

type ResourceResponse struct {
	ID                string                         `json:"id"`
	Title             string                         `json:"title"`
	Description       string                         `json:"description"`
	Type              string                         `json:"type"`
	Configuration     string                         `json:"configuration,omitempty"`
	PublicationStatus string                         `json:"publication_status"`
	Published         bool                           `json:"published"`
	AlternativeNames  []string                       `json:"alternative_names"`
	Categories        []categoryDto.CategoryResponse `json:"categories"`
	CreatedBy         AuthorResponse                 `json:"created_by"`
	// Set only on proposal shadows: the id of the published resource the
	// proposal targets.
	ProposalFor *string `json:"proposal_for,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type ResourceDetailResponse struct {
	ResourceResponse
	RelatedResources  []ResourceSummary `json:"related_resources"`
	UsedInLessonPlans int64             `json:"used_in_lesson_plans"`
}

type PaginatedResourceResponse struct {
	Data []ResourceResponse       `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
