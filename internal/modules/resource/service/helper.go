package resource

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/policy"
	categorySvc "github.com/improvdb/improvdb-api/internal/modules/category/service"
	resourceDto "github.com/improvdb/improvdb-api/internal/modules/resource/dto"
	"github.com/improvdb/improvdb-api/pkg/apperror"
	"github.com/improvdb/improvdb-api/pkg/ratelimiter"
)

// Resource ids are URL slugs: lowercase letters and hyphens only.
var slugPattern = regexp.MustCompile(`^[a-z-]+$`)

var slugStrip = regexp.MustCompile(`[^a-z -]`)

// slugFromTitle derives the default id from a title. The client usually
// sends its own kebab-cased id; this is the server-side fallback and the
// client's value is validated against the same rules either way.
func slugFromTitle(title string) string {
	slug := strings.ToLower(title)
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = strings.Join(strings.Fields(slug), "-")
	return strings.Trim(slug, "-")
}

const slugLetters = "abcdefghijklmnopqrstuvwxyz"

func randomLetters(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = slugLetters[rand.Intn(len(slugLetters))]
	}
	return string(b)
}

// proposalID builds a unique shadow id for an edit proposal. Shadows are
// never publicly listed, so the suffix only has to be unique and slug-legal.
func (s *service) proposalID(ctx context.Context, originalID string) (string, error) {
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("%s-proposal-%s", originalID, randomLetters(6))
		exists, err := s.resourceRepo.ExistsByID(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate proposal id for %s", originalID)
}

// applyStatus is the single place the derived Published flag is kept in
// lockstep with PublicationStatus.
func applyStatus(r *entity.Resource, status string) {
	r.PublicationStatus = status
	r.Published = status == entity.StatusPublished
}

func (s *service) checkRateLimit(ctx context.Context, p *policy.Principal) error {
	if s.limiter == nil || p.IsAdmin() {
		return nil
	}

	allowed, retryAfter, err := s.limiter.Allow(ctx, ratelimiter.UserKey(p.ID))
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		return &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are making changes too fast. Please wait %.0f seconds", retryAfter.Seconds()),
			RetryAfter: retryAfter,
		}
	}
	return nil
}

// viewError hides existence from anonymous callers and answers forbidden to
// authenticated ones.
func viewError(p *policy.Principal) error {
	if p == nil {
		return fmt.Errorf("resource not found: %w", apperror.ErrNotFound)
	}
	return fmt.Errorf("you do not have access to this resource: %w", apperror.ErrForbidden)
}

// mutationError distinguishes "may not see it" from "may see but not touch".
func mutationError(r *entity.Resource, p *policy.Principal) error {
	if !policy.CanViewResource(r, p) {
		return viewError(p)
	}
	return fmt.Errorf("you cannot modify this resource: %w", apperror.ErrForbidden)
}

func joinAlternativeNames(names []string) string {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			cleaned = append(cleaned, n)
		}
	}
	return strings.Join(cleaned, ";")
}

func splitAlternativeNames(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ";")
}

func buildResourceResponse(r *entity.Resource) resourceDto.ResourceResponse {
	author := resourceDto.AuthorResponse{
		ID:   r.CreatedByID.String(),
		Name: r.CreatedBy.Name,
	}

	return resourceDto.ResourceResponse{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		Type:              r.Type,
		Configuration:     r.Configuration,
		PublicationStatus: r.PublicationStatus,
		Published:         r.Published,
		AlternativeNames:  splitAlternativeNames(r.AlternativeNames),
		Categories:        categorySvc.BuildCategoryResponses(r.Categories),
		CreatedBy:         author,
		ProposalFor:       r.EditProposalOriginalResourceID,
		CreatedAt:         r.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:         r.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// BuildResourceResponses is shared with modules that list resources on
// behalf of a user, such as favourites.
func BuildResourceResponses(resources []*entity.Resource) []resourceDto.ResourceResponse {
	return buildResourceResponses(resources)
}

func buildResourceResponses(resources []*entity.Resource) []resourceDto.ResourceResponse {
	responses := make([]resourceDto.ResourceResponse, 0, len(resources))
	for _, r := range resources {
		responses = append(responses, buildResourceResponse(r))
	}
	return responses
}

func buildResourceSummaries(resources []*entity.Resource) []resourceDto.ResourceSummary {
	seen := make(map[string]bool, len(resources))
	summaries := make([]resourceDto.ResourceSummary, 0, len(resources))
	for _, r := range resources {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		summaries = append(summaries, resourceDto.ResourceSummary{
			ID:            r.ID,
			Title:         r.Title,
			Type:          r.Type,
			Configuration: r.Configuration,
		})
	}
	return summaries
}
