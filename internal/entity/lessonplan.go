package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lesson plan visibility tiers. UNLISTED plans are readable by anyone who
// holds the id; only PRIVATE plans are hidden from non-owners.
const (
	VisibilityPublic   = "PUBLIC"
	VisibilityUnlisted = "UNLISTED"
	VisibilityPrivate  = "PRIVATE"
)

// Lesson plan item kinds: an item either links a resource or carries free
// text, never both implicitly.
const (
	ItemKindResource = "RESOURCE"
	ItemKindText     = "TEXT"
)

type LessonPlan struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Theme       string    `gorm:"size:255" json:"theme"`
	Description string    `gorm:"type:text" json:"description"`
	UseDuration bool      `gorm:"not null;default:true" json:"use_duration"`
	Visibility  string    `gorm:"size:20;not null;default:PRIVATE;index" json:"visibility"`

	CreatedByID uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by_id"`
	CreatedBy   User      `gorm:"constraint:OnDelete:CASCADE" json:"created_by,omitempty"`

	Sections []LessonPlanSection `gorm:"constraint:OnDelete:CASCADE" json:"sections,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (lp *LessonPlan) BeforeCreate(tx *gorm.DB) (err error) {
	if lp.ID == uuid.Nil {
		lp.ID, err = uuid.NewV7()
	}
	return
}

// LessonPlanSection rows are fully replaced on every plan update; Order is
// dense within a plan, assigned from array position on save. The column is
// named position because "order" is an SQL reserved word.
type LessonPlanSection struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LessonPlanID uuid.UUID `gorm:"type:uuid;not null;index" json:"lesson_plan_id"`
	Title        string    `gorm:"size:255" json:"title"`
	Order        int       `gorm:"column:position;not null" json:"order"`

	Items []LessonPlanItem `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (s *LessonPlanSection) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID, err = uuid.NewV7()
	}
	return
}

type LessonPlanItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"section_id"`
	Order     int       `gorm:"column:position;not null" json:"order"`
	Kind      string    `gorm:"size:20;not null" json:"kind"`
	Text      string    `gorm:"type:text" json:"text"`
	// Duration in minutes; nil means "not timed".
	Duration   *int      `json:"duration,omitempty"`
	ResourceID *string   `gorm:"size:100" json:"resource_id,omitempty"`
	Resource   *Resource `gorm:"constraint:OnDelete:SET NULL" json:"resource,omitempty"`
}

func (i *LessonPlanItem) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID, err = uuid.NewV7()
	}
	return
}
