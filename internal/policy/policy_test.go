package policy_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/improvdb/improvdb-api/internal/entity"
	"github.com/improvdb/improvdb-api/internal/policy"
)

var (
	ownerID    = uuid.New()
	strangerID = uuid.New()

	owner    = &policy.Principal{ID: ownerID, Role: entity.RoleUser}
	stranger = &policy.Principal{ID: strangerID, Role: entity.RoleUser}
	admin    = &policy.Principal{ID: uuid.New(), Role: entity.RoleAdmin}
)

func draftResource() *entity.Resource {
	return &entity.Resource{
		ID:                "blue-ball",
		CreatedByID:       ownerID,
		PublicationStatus: entity.StatusDraft,
		Published:         false,
	}
}

func publishedResource() *entity.Resource {
	return &entity.Resource{
		ID:                "blue-ball",
		CreatedByID:       ownerID,
		PublicationStatus: entity.StatusPublished,
		Published:         true,
	}
}

func TestCanViewResource(t *testing.T) {
	tests := []struct {
		name      string
		resource  *entity.Resource
		principal *policy.Principal
		want      bool
	}{
		{"published visible to anonymous", publishedResource(), nil, true},
		{"published visible to stranger", publishedResource(), stranger, true},
		{"draft hidden from anonymous", draftResource(), nil, false},
		{"draft hidden from stranger", draftResource(), stranger, false},
		{"draft visible to owner", draftResource(), owner, true},
		{"draft visible to admin", draftResource(), admin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.CanViewResource(tt.resource, tt.principal); got != tt.want {
				t.Errorf("CanViewResource() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanViewLessonPlan(t *testing.T) {
	plan := func(visibility string) *entity.LessonPlan {
		return &entity.LessonPlan{CreatedByID: ownerID, Visibility: visibility}
	}

	tests := []struct {
		name      string
		plan      *entity.LessonPlan
		principal *policy.Principal
		want      bool
	}{
		{"public visible to anonymous", plan(entity.VisibilityPublic), nil, true},
		{"unlisted visible to anonymous with id", plan(entity.VisibilityUnlisted), nil, true},
		{"private hidden from anonymous", plan(entity.VisibilityPrivate), nil, false},
		{"private hidden from stranger", plan(entity.VisibilityPrivate), stranger, false},
		{"private visible to owner", plan(entity.VisibilityPrivate), owner, true},
		{"private visible to admin", plan(entity.VisibilityPrivate), admin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.CanViewLessonPlan(tt.plan, tt.principal); got != tt.want {
				t.Errorf("CanViewLessonPlan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanMutateResource(t *testing.T) {
	pending := draftResource()
	pending.PublicationStatus = entity.StatusPending

	tests := []struct {
		name      string
		resource  *entity.Resource
		principal *policy.Principal
		intent    policy.Intent
		want      bool
	}{
		{"owner edits own draft", draftResource(), owner, policy.IntentEdit, true},
		{"owner edits own pending", pending, owner, policy.IntentEdit, true},
		{"owner deletes own draft", draftResource(), owner, policy.IntentDelete, true},
		{"owner cannot edit own published", publishedResource(), owner, policy.IntentEdit, false},
		{"owner cannot delete own published", publishedResource(), owner, policy.IntentDelete, false},
		{"owner cannot publish", pending, owner, policy.IntentPublish, false},
		{"stranger cannot edit draft", draftResource(), stranger, policy.IntentEdit, false},
		{"anonymous cannot delete", draftResource(), nil, policy.IntentDelete, false},
		{"admin edits published", publishedResource(), admin, policy.IntentEdit, true},
		{"admin deletes pending", pending, admin, policy.IntentDelete, true},
		{"admin publishes", pending, admin, policy.IntentPublish, true},
		{"admin accepts proposal", publishedResource(), admin, policy.IntentAcceptProposal, true},
		{"user cannot accept proposal", publishedResource(), owner, policy.IntentAcceptProposal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.CanMutateResource(tt.resource, tt.principal, tt.intent); got != tt.want {
				t.Errorf("CanMutateResource(%s) = %v, want %v", tt.intent, got, tt.want)
			}
		})
	}
}

func TestCanProposeEditsTo(t *testing.T) {
	if policy.CanProposeEditsTo(publishedResource(), stranger) != true {
		t.Error("any authenticated user should be able to propose edits to a published resource")
	}
	if policy.CanProposeEditsTo(publishedResource(), nil) {
		t.Error("anonymous callers cannot propose edits")
	}
	if policy.CanProposeEditsTo(draftResource(), stranger) {
		t.Error("proposals may only target published resources")
	}

	orig := "blue-ball"
	shadow := publishedResource()
	shadow.EditProposalOriginalResourceID = &orig
	if policy.CanProposeEditsTo(shadow, stranger) {
		t.Error("proposals may not target another proposal shadow")
	}
}

func TestCanMutateLessonPlan(t *testing.T) {
	plan := &entity.LessonPlan{CreatedByID: ownerID, Visibility: entity.VisibilityPrivate}

	if !policy.CanMutateLessonPlan(plan, owner) {
		t.Error("owner must be able to mutate their own plan")
	}
	if policy.CanMutateLessonPlan(plan, stranger) {
		t.Error("stranger must not mutate another user's plan")
	}
	// Admins can view private plans but have no mutation rights over them.
	if policy.CanMutateLessonPlan(plan, admin) {
		t.Error("admin override on lesson plans is not granted")
	}
	if policy.CanMutateLessonPlan(plan, nil) {
		t.Error("anonymous callers cannot mutate plans")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name      string
		from, to  string
		principal *policy.Principal
		want      bool
	}{
		{"owner submits draft", entity.StatusDraft, entity.StatusPending, owner, true},
		{"anonymous cannot submit", entity.StatusDraft, entity.StatusPending, nil, false},
		{"admin approves pending", entity.StatusPending, entity.StatusPublished, admin, true},
		{"user cannot approve", entity.StatusPending, entity.StatusPublished, owner, false},
		{"admin unpublishes to pending", entity.StatusPublished, entity.StatusPending, admin, true},
		{"user cannot unpublish", entity.StatusPublished, entity.StatusPending, owner, false},
		{"admin may publish a draft directly", entity.StatusDraft, entity.StatusPublished, admin, true},
		{"user cannot publish a draft", entity.StatusDraft, entity.StatusPublished, owner, false},
		{"no published to draft", entity.StatusPublished, entity.StatusDraft, admin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.CanTransition(tt.from, tt.to, tt.principal); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
