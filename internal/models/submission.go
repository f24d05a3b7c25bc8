package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one answer by a student item for one attempt. Submissions are
// never edited after creation; a rescore creates a new attempt instead.
type Submission struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          string         `gorm:"size:36;not null;uniqueIndex" json:"uuid"`
	StudentItemID uint           `gorm:"not null;index" json:"student_item_id"`
	Attempt       int            `gorm:"not null;default:1" json:"attempt"`
	Answer        datatypes.JSON `gorm:"type:jsonb" json:"answer"`
	SubmittedAt   time.Time      `gorm:"not null;index" json:"submitted_at"`
	CreatedAt     time.Time      `json:"created_at"`
	StudentItem   StudentItem    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student_item"`
}
