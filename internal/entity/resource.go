package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resource types.
const (
	ResourceTypeExercise  = "EXERCISE"
	ResourceTypeShortForm = "SHORT_FORM"
	ResourceTypeLongForm  = "LONG_FORM"
)

// Exercise configurations. Meaningful only when Type is EXERCISE.
const (
	ConfigurationScene      = "SCENE"
	ConfigurationBackline   = "BACKLINE"
	ConfigurationWholeClass = "WHOLE_CLASS"
	ConfigurationSolo       = "SOLO"
	ConfigurationPairs      = "PAIRS"
	ConfigurationGroups     = "GROUPS"
	ConfigurationCircle     = "CIRCLE"
)

// Publication workflow states.
const (
	StatusDraft     = "DRAFT"
	StatusPending   = "PENDING"
	StatusPublished = "PUBLISHED"
)

// Resource is a single improv exercise, short-form or long-form entry. The
// primary key is a URL slug chosen at creation time and immutable after.
//
// A resource with a non-nil EditProposalOriginalResourceID is a proposal
// shadow: a pending copy of a published resource awaiting admin review. It
// never appears in public listings and is deleted when the proposal is
// accepted or rejected.
type Resource struct {
	ID                string `gorm:"size:100;primaryKey" json:"id"`
	Title             string `gorm:"size:255;not null" json:"title"`
	Description       string `gorm:"type:text;not null" json:"description"`
	Type              string `gorm:"size:20;not null;index" json:"type"`
	Configuration     string `gorm:"size:20" json:"configuration"`
	PublicationStatus string `gorm:"size:20;not null;default:DRAFT;index" json:"publication_status"`
	Published         bool   `gorm:"not null;default:false;index" json:"published"`

	CreatedByID uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by_id"`
	CreatedBy   User      `gorm:"constraint:OnDelete:CASCADE" json:"created_by,omitempty"`

	EditProposalOriginalResourceID *string   `gorm:"size:100;index" json:"edit_proposal_original_resource_id,omitempty"`
	EditProposalOriginal           *Resource `gorm:"foreignKey:EditProposalOriginalResourceID;constraint:OnDelete:CASCADE" json:"-"`

	// Semicolon-delimited; split into a list at the DTO boundary.
	AlternativeNames string `gorm:"type:text" json:"alternative_names"`

	Categories       []Category  `gorm:"many2many:resource_categories;constraint:OnDelete:CASCADE" json:"categories,omitempty"`
	RelatedResources []*Resource `gorm:"many2many:resource_relations;joinForeignKey:ResourceID;joinReferences:RelatedID" json:"related_resources,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsProposal reports whether this record is a proposal shadow.
func (r *Resource) IsProposal() bool {
	return r.EditProposalOriginalResourceID != nil
}

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}
