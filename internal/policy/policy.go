// Package policy holds the pure visibility and mutation rules for resources
// and lesson plans. Nothing here touches the database: callers load the
// entity, build a Principal from the request, and translate a false answer
// into a forbidden or not-found error.
package policy

import (
	"github.com/google/uuid"

	"github.com/improvdb/improvdb-api/internal/entity"
)

// Principal is the acting user. A nil *Principal is an anonymous caller.
type Principal struct {
	ID   uuid.UUID
	Role string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == entity.RoleAdmin
}

func (p *Principal) isOwnerOf(ownerID uuid.UUID) bool {
	return p != nil && p.ID == ownerID
}

// Intent distinguishes the resource mutations with different rules.
type Intent string

const (
	IntentEdit           Intent = "edit"
	IntentDelete         Intent = "delete"
	IntentPublish        Intent = "publish"
	IntentAcceptProposal Intent = "accept_proposal"
)

// CanViewResource: published resources are world-readable; unpublished ones
// only to their owner or an admin.
func CanViewResource(r *entity.Resource, p *Principal) bool {
	if r.Published {
		return true
	}
	return p.IsAdmin() || p.isOwnerOf(r.CreatedByID)
}

// CanViewLessonPlan: PUBLIC and UNLISTED plans are readable by anyone who
// holds the id (obscurity is the documented access model for UNLISTED);
// PRIVATE plans only by the owner or an admin.
func CanViewLessonPlan(lp *entity.LessonPlan, p *Principal) bool {
	if lp.Visibility != entity.VisibilityPrivate {
		return true
	}
	return p.IsAdmin() || p.isOwnerOf(lp.CreatedByID)
}

// CanMutateResource: owners may edit or delete their own draft and pending
// resources. Published resources, publication toggles and proposal
// acceptance are admin-only.
func CanMutateResource(r *entity.Resource, p *Principal, intent Intent) bool {
	if p == nil {
		return false
	}

	switch intent {
	case IntentPublish, IntentAcceptProposal:
		return p.IsAdmin()
	case IntentEdit, IntentDelete:
		if p.IsAdmin() {
			return true
		}
		if !p.isOwnerOf(r.CreatedByID) {
			return false
		}
		return r.PublicationStatus == entity.StatusDraft || r.PublicationStatus == entity.StatusPending
	default:
		return false
	}
}

// CanProposeEditsTo: any authenticated user may open an edit proposal
// against a published resource. Ownership of the original is irrelevant.
func CanProposeEditsTo(r *entity.Resource, p *Principal) bool {
	return p != nil && r.Published && !r.IsProposal()
}

// CanMutateLessonPlan is owner-only. Admins can view private plans but hold
// no mutation rights over other users' plans.
func CanMutateLessonPlan(lp *entity.LessonPlan, p *Principal) bool {
	return p.isOwnerOf(lp.CreatedByID)
}

// CanTransition encodes the publication state machine. Client-submitted
// statuses are never trusted; services derive the target state server-side
// and re-check legality here.
//
//	DRAFT     --(owner submit)-->   PENDING
//	PENDING   --(admin approve)-->  PUBLISHED
//	DRAFT     --(admin approve)-->  PUBLISHED  (moderation may skip review)
//	PUBLISHED --(admin unpublish)-> PENDING
func CanTransition(from, to string, p *Principal) bool {
	switch {
	case from == entity.StatusDraft && to == entity.StatusPending:
		return p != nil
	case to == entity.StatusPublished && (from == entity.StatusPending || from == entity.StatusDraft):
		return p.IsAdmin()
	case from == entity.StatusPublished && to == entity.StatusPending:
		return p.IsAdmin()
	}
	return false
}
