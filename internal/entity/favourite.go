package entity

import (
	"time"

	"github.com/google/uuid"
)

// Favourite has no lifecycle beyond existence: the composite key is the
// whole record.
type Favourite struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ResourceID string    `gorm:"size:100;primaryKey" json:"resource_id"`
	User       User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Resource   Resource  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
