package search

import (
	"html"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/pkg/logger"
)

const resourceIndex = "resources"

// SearchService keeps the Meilisearch index of published resources in sync.
// Indexing is best-effort; callers treat a nil service as "search disabled".
type SearchService interface {
	IndexResource(resource *entity.Resource) error
	DeleteResource(id string) error
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewMeiliSearchService(client meilisearch.ServiceManager) SearchService {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	filterableAttrs := []string{"type", "configuration", "categories"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(resourceIndex).UpdateFilterableAttributes(&filterableInterface); err != nil {
		logger.L().Warn("failed to update resource filterable attributes", zap.Error(err))
	}

	sortableAttrs := []string{"updated_at", "title"}
	if _, err := s.client.Index(resourceIndex).UpdateSortableAttributes(&sortableAttrs); err != nil {
		logger.L().Warn("failed to update resource sortable attributes", zap.Error(err))
	}
}

type meiliResourceDoc struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Type             string   `json:"type"`
	Configuration    string   `json:"configuration"`
	AlternativeNames []string `json:"alternative_names"`
	Categories       []string `json:"categories"`
	UpdatedAt        int64    `json:"updated_at"`
}

func (s *meiliSearchService) cleanForIndex(content string) string {
	sanitized := s.sanitizer.Sanitize(content)
	cleanText := html.UnescapeString(sanitized)
	return strings.Join(strings.Fields(cleanText), " ")
}

func (s *meiliSearchService) IndexResource(resource *entity.Resource) error {
	categories := make([]string, 0, len(resource.Categories))
	for _, c := range resource.Categories {
		categories = append(categories, c.Name)
	}

	var altNames []string
	if resource.AlternativeNames != "" {
		altNames = strings.Split(resource.AlternativeNames, ";")
	}

	doc := meiliResourceDoc{
		ID:               resource.ID,
		Title:            resource.Title,
		Description:      s.cleanForIndex(resource.Description),
		Type:             resource.Type,
		Configuration:    resource.Configuration,
		AlternativeNames: altNames,
		Categories:       categories,
		UpdatedAt:        resource.UpdatedAt.Unix(),
	}

	primaryKey := "id"
	task, err := s.client.Index(resourceIndex).AddDocuments([]meiliResourceDoc{doc}, &primaryKey)
	if err != nil {
		return err
	}
	logger.L().Debug("indexed resource",
		zap.String("resource_id", resource.ID),
		zap.Int64("task_uid", task.TaskUID),
	)
	return nil
}

func (s *meiliSearchService) DeleteResource(id string) error {
	_, err := s.client.Index(resourceIndex).DeleteDocument(id)
	return err
}
