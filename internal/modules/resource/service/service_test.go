package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
	categoryRepo "github.com/improvdb/improvdb-api/internal/modules/category/repository"
	resourceDto "github.com/improvdb/improvdb-api/internal/modules/resource/dto"
	repo "github.com/improvdb/improvdb-api/internal/modules/resource/repository"
	"github.com/improvdb/improvdb-api/internal/policy"
	"github.com/improvdb/improvdb-api/internal/testutil"
	"github.com/improvdb/improvdb-api/pkg/apperror"
	"github.com/improvdb/improvdb-api/pkg/ratelimiter"
)

var userSeq int

func newTestService(t *testing.T, limiter ratelimiter.Limiter) (Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := NewService(repo.NewRepository(db), categoryRepo.NewCategoryRepository(db), limiter, nil, nil)
	return svc, db
}

func createPrincipal(t *testing.T, db *gorm.DB, role string) *policy.Principal {
	t.Helper()
	userSeq++
	u := entity.User{
		Name:         fmt.Sprintf("User %d", userSeq),
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		PasswordHash: "irrelevant",
		Role:         role,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &policy.Principal{ID: u.ID, Role: u.Role}
}

func exerciseRequest(title string) resourceDto.CreateResourceRequest {
	return resourceDto.CreateResourceRequest{
		Title:         title,
		Description:   "Players freeze and swap into scenes.",
		Type:          entity.ResourceTypeExercise,
		Configuration: entity.ConfigurationScene,
	}
}

func TestCreateDerivesSlugFromTitle(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)

	resp, err := svc.Create(context.Background(), alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.ID != "freeze-tag" {
		t.Errorf("expected slug freeze-tag, got %q", resp.ID)
	}
	if resp.PublicationStatus != entity.StatusDraft {
		t.Errorf("new resource should be a draft, got %s", resp.PublicationStatus)
	}
	if resp.Published {
		t.Error("drafts must not be published")
	}
}

func TestCreateRejectsBadSlug(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)

	req := exerciseRequest("Whatever")
	req.ID = "Not_A_Slug99"
	if _, err := svc.Create(context.Background(), alice, req); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateDuplicateSlugConflicts(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	bob := createPrincipal(t, db, entity.RoleUser)

	if _, err := svc.Create(context.Background(), alice, exerciseRequest("Freeze Tag")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), bob, exerciseRequest("Freeze Tag")); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSubmitOnCreateGoesToPending(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)

	req := exerciseRequest("Freeze Tag")
	req.Submit = true
	resp, err := svc.Create(context.Background(), alice, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.PublicationStatus != entity.StatusPending {
		t.Errorf("submitted resource should be pending, got %s", resp.PublicationStatus)
	}
	if resp.Published {
		t.Error("pending resources must not be published")
	}
}

func TestPublicationLifecycle(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Non-admins never touch publication state.
	if _, err := svc.SetPublished(ctx, alice, created.ID, true); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("owner publish should be forbidden, got %v", err)
	}

	published, err := svc.SetPublished(ctx, admin, created.ID, true)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.PublicationStatus != entity.StatusPublished || !published.Published {
		t.Errorf("expected PUBLISHED/true, got %s/%v", published.PublicationStatus, published.Published)
	}

	// Publishing again is a no-op.
	again, err := svc.SetPublished(ctx, admin, created.ID, true)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if again.PublicationStatus != entity.StatusPublished {
		t.Errorf("expected PUBLISHED after no-op, got %s", again.PublicationStatus)
	}

	// Unpublishing returns the resource to the review queue.
	unpublished, err := svc.SetPublished(ctx, admin, created.ID, false)
	if err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if unpublished.PublicationStatus != entity.StatusPending || unpublished.Published {
		t.Errorf("expected PENDING/false, got %s/%v", unpublished.PublicationStatus, unpublished.Published)
	}
}

func TestDraftVisibility(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	bob := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.GetByID(ctx, nil, created.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("anonymous should get not found, got %v", err)
	}
	if _, err := svc.GetByID(ctx, bob, created.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("stranger should get forbidden, got %v", err)
	}
	if _, err := svc.GetByID(ctx, alice, created.ID); err != nil {
		t.Errorf("owner should see own draft: %v", err)
	}
	if _, err := svc.GetByID(ctx, admin, created.ID); err != nil {
		t.Errorf("admin should see any draft: %v", err)
	}

	listing, err := svc.GetAll(ctx, resourceDto.ResourceFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing.Data) != 0 {
		t.Errorf("drafts must not appear in the public listing, got %d", len(listing.Data))
	}
}

func TestProposalMergeAndCleanup(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	bob := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Proposals only target published resources.
	if _, err := svc.ProposeUpdate(ctx, bob, created.ID, resourceDto.UpdateResourceRequest{
		Title:       "Freeze Tag Revised",
		Description: "Better rules.",
		Type:        entity.ResourceTypeExercise,
	}); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("proposal against a draft should fail, got %v", err)
	}

	if _, err := svc.SetPublished(ctx, admin, created.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}

	proposal, err := svc.ProposeUpdate(ctx, bob, created.ID, resourceDto.UpdateResourceRequest{
		Title:         "Freeze Tag Revised",
		Description:   "Better rules.",
		Type:          entity.ResourceTypeExercise,
		Configuration: entity.ConfigurationCircle,
		Categories:    []string{"warm-ups"},
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if !strings.HasPrefix(proposal.ID, created.ID+"-proposal-") {
		t.Errorf("unexpected shadow id %q", proposal.ID)
	}
	if proposal.ProposalFor == nil || *proposal.ProposalFor != created.ID {
		t.Errorf("shadow should point at the original")
	}

	// The original is untouched while the proposal is pending.
	original, err := svc.GetByID(ctx, nil, created.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Title != "Freeze Tag" {
		t.Errorf("original mutated before acceptance: %q", original.Title)
	}

	if _, err := svc.AcceptProposedUpdate(ctx, bob, proposal.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("non-admin acceptance should fail, got %v", err)
	}

	merged, err := svc.AcceptProposedUpdate(ctx, admin, proposal.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if merged.Title != "Freeze Tag Revised" {
		t.Errorf("title not merged: %q", merged.Title)
	}
	if merged.Configuration != entity.ConfigurationCircle {
		t.Errorf("configuration not merged: %q", merged.Configuration)
	}
	if merged.PublicationStatus != entity.StatusPublished {
		t.Errorf("merge must not unpublish, got %s", merged.PublicationStatus)
	}
	if merged.CreatedBy.ID != alice.ID.String() {
		t.Errorf("merge must not change authorship")
	}
	if len(merged.Categories) != 1 || merged.Categories[0].Name != "warm-ups" {
		t.Errorf("categories not replaced: %+v", merged.Categories)
	}

	// Shadow is gone after the merge.
	if _, err := svc.GetByID(ctx, admin, proposal.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("shadow should be deleted, got %v", err)
	}
}

func TestAcceptRejectsNonProposals(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AcceptProposedUpdate(ctx, admin, created.ID); !errors.Is(err, apperror.ErrBadRequest) {
		t.Fatalf("accepting a regular resource should fail, got %v", err)
	}
}

func TestDeletePermissions(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	bob := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	draft, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, bob, draft.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("stranger delete should be forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, alice, draft.ID); err != nil {
		t.Fatalf("owner should delete own draft: %v", err)
	}

	published, err := svc.Create(ctx, alice, exerciseRequest("Word Ball"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SetPublished(ctx, admin, published.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := svc.Delete(ctx, alice, published.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("owner must not delete published work, got %v", err)
	}
	if err := svc.Delete(ctx, admin, published.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestWriteRateLimit(t *testing.T) {
	svc, db := newTestService(t, ratelimiter.NewMemoryLimiter(3, time.Minute))
	alice := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	titles := []string{"Freeze Tag", "Word Ball", "Zip Zap Zop"}
	for _, title := range titles {
		if _, err := svc.Create(ctx, alice, exerciseRequest(title)); err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
	}

	_, err := svc.Create(ctx, alice, exerciseRequest("One Too Many"))
	var rateErr *ratelimiter.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("fourth write should be rate limited, got %v", err)
	}
	if rateErr.RetryAfter <= 0 {
		t.Errorf("retry-after should be positive, got %v", rateErr.RetryAfter)
	}

	// Admins bypass the limiter entirely.
	for i := 0; i < 5; i++ {
		if _, err := svc.Create(ctx, admin, exerciseRequest(fmt.Sprintf("Admin Game %s", strings.Repeat("x", i+1)))); err != nil {
			t.Fatalf("admin create %d: %v", i, err)
		}
	}
}

func TestUnpublishRequiresPublished(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	draft, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// "Unpublishing" a draft must not submit it for review.
	if _, err := svc.SetPublished(ctx, admin, draft.ID, false); !errors.Is(err, apperror.ErrBadRequest) {
		t.Fatalf("unpublishing a draft should be a bad request, got %v", err)
	}
	after, err := svc.GetByID(ctx, alice, draft.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.PublicationStatus != entity.StatusDraft {
		t.Errorf("draft status changed to %s", after.PublicationStatus)
	}
}

func TestHiddenDraftsExcludedFromRelated(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	bob := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	draft, err := svc.Create(ctx, alice, exerciseRequest("Secret Show Format"))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	linkReq := exerciseRequest("Word Ball")
	linkReq.RelatedResourceIDs = []string{draft.ID}
	linked, err := svc.Create(ctx, bob, linkReq)
	if err != nil {
		t.Fatalf("create linking resource: %v", err)
	}
	if _, err := svc.SetPublished(ctx, admin, linked.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The link exists, but the draft stays invisible to everyone who
	// could not read it directly.
	for name, viewer := range map[string]*policy.Principal{"anonymous": nil, "linker": bob} {
		detail, err := svc.GetByID(ctx, viewer, linked.ID)
		if err != nil {
			t.Fatalf("get as %s: %v", name, err)
		}
		if len(detail.RelatedResources) != 0 {
			t.Errorf("%s can see the linked draft: %+v", name, detail.RelatedResources)
		}
	}
	for name, viewer := range map[string]*policy.Principal{"owner": alice, "admin": admin} {
		detail, err := svc.GetByID(ctx, viewer, linked.ID)
		if err != nil {
			t.Fatalf("get as %s: %v", name, err)
		}
		if len(detail.RelatedResources) != 1 {
			t.Errorf("%s should see the linked draft: %+v", name, detail.RelatedResources)
		}
	}

	// Once published the relation surfaces for everyone.
	if _, err := svc.SetPublished(ctx, admin, draft.ID, true); err != nil {
		t.Fatalf("publish draft: %v", err)
	}
	detail, err := svc.GetByID(ctx, nil, linked.ID)
	if err != nil {
		t.Fatalf("get after publish: %v", err)
	}
	if len(detail.RelatedResources) != 1 || detail.RelatedResources[0].ID != draft.ID {
		t.Errorf("published relation missing: %+v", detail.RelatedResources)
	}
}

func TestDeniedWritesDoNotConsumeRateLimit(t *testing.T) {
	svc, db := newTestService(t, ratelimiter.NewMemoryLimiter(3, time.Minute))
	alice := createPrincipal(t, db, entity.RoleUser)
	bob := createPrincipal(t, db, entity.RoleUser)
	ctx := context.Background()

	draft, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	update := resourceDto.UpdateResourceRequest{
		Title:       "Hijacked",
		Description: "d",
		Type:        entity.ResourceTypeExercise,
	}
	for i := 0; i < 5; i++ {
		if _, err := svc.Update(ctx, bob, draft.ID, update); !errors.Is(err, apperror.ErrForbidden) {
			t.Fatalf("attempt %d: expected forbidden, got %v", i+1, err)
		}
	}

	// The rejections above must not have burned bob's window.
	if _, err := svc.Create(ctx, bob, exerciseRequest("Word Ball")); err != nil {
		t.Fatalf("bob's own write should still pass: %v", err)
	}
}

func TestRelatedResourcesAreSymmetric(t *testing.T) {
	svc, db := newTestService(t, nil)
	alice := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, exerciseRequest("Freeze Tag"))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := exerciseRequest("Word Ball")
	second.RelatedResourceIDs = []string{first.ID}
	secondResp, err := svc.Create(ctx, alice, second)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := svc.SetPublished(ctx, admin, first.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.SetPublished(ctx, admin, secondResp.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The link was stored on second only but must be visible from both.
	firstDetail, err := svc.GetByID(ctx, nil, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if len(firstDetail.RelatedResources) != 1 || firstDetail.RelatedResources[0].ID != secondResp.ID {
		t.Errorf("inverse relation missing: %+v", firstDetail.RelatedResources)
	}
	secondDetail, err := svc.GetByID(ctx, nil, secondResp.ID)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if len(secondDetail.RelatedResources) != 1 || secondDetail.RelatedResources[0].ID != first.ID {
		t.Errorf("forward relation missing: %+v", secondDetail.RelatedResources)
	}
}
