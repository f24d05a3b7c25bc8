package models

import "time"

// StudentItem identifies the (student, course, item) triple a submission is scored
// against. Rows are immutable once created; the triple is unique.
type StudentItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID string    `gorm:"size:255;not null;uniqueIndex:idx_student_course_item" json:"student_id"`
	CourseID  string    `gorm:"size:255;not null;uniqueIndex:idx_student_course_item" json:"course_id"`
	ItemID    string    `gorm:"size:255;not null;uniqueIndex:idx_student_course_item" json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}
