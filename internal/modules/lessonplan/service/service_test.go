package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/modules/lessonplan/dto"
	"github.com/improvdb/improvdb-api/internal/modules/lessonplan/repository"
	resourceRepo "github.com/improvdb/improvdb-api/internal/modules/resource/repository"
	"github.com/improvdb/improvdb-api/internal/policy"
	"github.com/improvdb/improvdb-api/internal/testutil"
	"github.com/improvdb/improvdb-api/pkg/apperror"
)

var userSeq int

func newTestService(t *testing.T) (LessonPlanService, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	svc := NewLessonPlanService(repository.NewLessonPlanRepository(db), resourceRepo.NewRepository(db), nil)
	return svc, db
}

func createPrincipal(t *testing.T, db *gorm.DB, role string) *policy.Principal {
	t.Helper()
	userSeq++
	u := entity.User{
		Name:         fmt.Sprintf("Teacher %d", userSeq),
		Email:        fmt.Sprintf("teacher%d@example.com", userSeq),
		PasswordHash: "irrelevant",
		Role:         role,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &policy.Principal{ID: u.ID, Role: u.Role}
}

func createResource(t *testing.T, db *gorm.DB, owner *policy.Principal, id string) {
	t.Helper()
	res := entity.Resource{
		ID:                id,
		Title:             id,
		Description:       "d",
		Type:              entity.ResourceTypeExercise,
		PublicationStatus: entity.StatusPublished,
		Published:         true,
		CreatedByID:       owner.ID,
	}
	if err := db.Create(&res).Error; err != nil {
		t.Fatalf("create resource: %v", err)
	}
}

func minutes(n int) *int { return &n }

func planRequest(visibility string) *dto.SaveLessonPlanRequest {
	return &dto.SaveLessonPlanRequest{
		Title:       "Intro to Scene Work",
		Theme:       "listening",
		UseDuration: true,
		Visibility:  visibility,
		Sections: []dto.LessonPlanSectionRequest{
			{
				Title: "Warm-up",
				Items: []dto.LessonPlanItemRequest{
					{Kind: entity.ItemKindText, Text: "Circle up.", Duration: minutes(5)},
					{Kind: entity.ItemKindText, Text: "Stretch.", Duration: minutes(10)},
				},
			},
			{
				Title: "Main",
				Items: []dto.LessonPlanItemRequest{
					{Kind: entity.ItemKindText, Text: "Two-person scenes."},
				},
			},
		},
	}
}

func TestCreateAndReadLessonPlan(t *testing.T) {
	svc, db := newTestService(t)
	owner := createPrincipal(t, db, entity.RoleUser)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, planRequest(entity.VisibilityPrivate))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(created.Sections))
	}
	if created.Sections[0].Order != 0 || created.Sections[1].Order != 1 {
		t.Errorf("section order not dense: %d, %d", created.Sections[0].Order, created.Sections[1].Order)
	}
	// Untimed items count as zero.
	if created.TotalDuration != 15 {
		t.Errorf("expected total duration 15, got %d", created.TotalDuration)
	}
	if created.Sections[0].Duration != 15 || created.Sections[1].Duration != 0 {
		t.Errorf("section durations wrong: %d, %d", created.Sections[0].Duration, created.Sections[1].Duration)
	}
}

func TestResourceItemsRequireKnownResource(t *testing.T) {
	svc, db := newTestService(t)
	owner := createPrincipal(t, db, entity.RoleUser)
	ctx := context.Background()

	req := planRequest(entity.VisibilityPrivate)
	req.Sections[0].Items = append(req.Sections[0].Items, dto.LessonPlanItemRequest{
		Kind:       entity.ItemKindResource,
		ResourceID: "does-not-exist",
	})
	if _, err := svc.Create(ctx, owner, req); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	createResource(t, db, owner, "freeze-tag")
	req = planRequest(entity.VisibilityPrivate)
	req.Sections[0].Items = append(req.Sections[0].Items, dto.LessonPlanItemRequest{
		Kind:       entity.ItemKindResource,
		ResourceID: "freeze-tag",
		Duration:   minutes(20),
	})
	created, err := svc.Create(ctx, owner, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	items := created.Sections[0].Items
	last := items[len(items)-1]
	if last.Resource == nil || last.Resource.ID != "freeze-tag" {
		t.Errorf("resource item not resolved: %+v", last)
	}
	if created.TotalDuration != 35 {
		t.Errorf("expected total duration 35, got %d", created.TotalDuration)
	}
}

func TestTextItemsRequireText(t *testing.T) {
	svc, db := newTestService(t)
	owner := createPrincipal(t, db, entity.RoleUser)

	req := planRequest(entity.VisibilityPrivate)
	req.Sections[0].Items[0].Text = ""
	if _, err := svc.Create(context.Background(), owner, req); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUpdateReplacesSections(t *testing.T) {
	svc, db := newTestService(t)
	owner := createPrincipal(t, db, entity.RoleUser)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, planRequest(entity.VisibilityPrivate))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	planID := uuid.MustParse(created.ID)

	req := planRequest(entity.VisibilityPrivate)
	req.Title = "Reworked"
	req.Sections = []dto.LessonPlanSectionRequest{
		{
			Title: "Only Section",
			Items: []dto.LessonPlanItemRequest{
				{Kind: entity.ItemKindText, Text: "New content.", Duration: minutes(30)},
			},
		},
	}
	updated, err := svc.Update(ctx, owner, planID, req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Reworked" {
		t.Errorf("title not updated: %q", updated.Title)
	}
	if len(updated.Sections) != 1 || updated.Sections[0].Title != "Only Section" {
		t.Fatalf("sections not replaced: %+v", updated.Sections)
	}
	if updated.TotalDuration != 30 {
		t.Errorf("expected total duration 30, got %d", updated.TotalDuration)
	}

	// Old sections and items are gone, not orphaned.
	var sectionCount, itemCount int64
	db.Model(&entity.LessonPlanSection{}).Where("lesson_plan_id = ?", planID).Count(&sectionCount)
	db.Model(&entity.LessonPlanItem{}).Count(&itemCount)
	if sectionCount != 1 || itemCount != 1 {
		t.Errorf("expected 1 section and 1 item in store, got %d and %d", sectionCount, itemCount)
	}
}

func TestPrivatePlansAreHidden(t *testing.T) {
	svc, db := newTestService(t)
	owner := createPrincipal(t, db, entity.RoleUser)
	stranger := createPrincipal(t, db, entity.RoleUser)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, planRequest(entity.VisibilityPrivate))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	planID := uuid.MustParse(created.ID)

	// Existence is never leaked: both read and mutation answer not found.
	if _, err := svc.GetByID(ctx, nil, planID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("anonymous read should be not found, got %v", err)
	}
	if _, err := svc.GetByID(ctx, stranger, planID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("stranger read should be not found, got %v", err)
	}
	if err := svc.Delete(ctx, stranger, planID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("stranger delete should be not found, got %v", err)
	}

	if _, err := svc.GetByID(ctx, owner, planID); err != nil {
		t.Errorf("owner read: %v", err)
	}
}

func TestUnlistedPlansReadableButNotListed(t *testing.T) {
	svc, db := newTestService(t)
	owner := createPrincipal(t, db, entity.RoleUser)
	ctx := context.Background()

	unlisted, err := svc.Create(ctx, owner, planRequest(entity.VisibilityUnlisted))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetByID(ctx, nil, uuid.MustParse(unlisted.ID)); err != nil {
		t.Errorf("unlisted plans are readable by id: %v", err)
	}

	public, err := svc.Create(ctx, owner, planRequest(entity.VisibilityPublic))
	if err != nil {
		t.Fatalf("create public: %v", err)
	}

	listing, err := svc.GetPublic(ctx, 1, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing.Data) != 1 || listing.Data[0].ID != public.ID {
		t.Errorf("only public plans belong in the listing: %+v", listing.Data)
	}
}

func TestSetVisibilityOwnerOnlyAndIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	owner := createPrincipal(t, db, entity.RoleUser)
	stranger := createPrincipal(t, db, entity.RoleUser)
	admin := createPrincipal(t, db, entity.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, planRequest(entity.VisibilityPublic))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	planID := uuid.MustParse(created.ID)

	if _, err := svc.SetVisibility(ctx, stranger, planID, entity.VisibilityPrivate); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("stranger should be forbidden on a visible plan, got %v", err)
	}
	// Lesson plans are personal documents; even admins stay out.
	if _, err := svc.SetVisibility(ctx, admin, planID, entity.VisibilityPrivate); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("admin should be forbidden, got %v", err)
	}

	updated, err := svc.SetVisibility(ctx, owner, planID, entity.VisibilityUnlisted)
	if err != nil {
		t.Fatalf("set visibility: %v", err)
	}
	if updated.Visibility != entity.VisibilityUnlisted {
		t.Errorf("visibility not applied: %s", updated.Visibility)
	}

	// Setting the same value again succeeds with no change.
	same, err := svc.SetVisibility(ctx, owner, planID, entity.VisibilityUnlisted)
	if err != nil {
		t.Fatalf("repeat set visibility: %v", err)
	}
	if same.Visibility != entity.VisibilityUnlisted {
		t.Errorf("idempotent set changed state: %s", same.Visibility)
	}
}
