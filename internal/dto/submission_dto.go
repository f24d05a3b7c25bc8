package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// SubmissionCreateRequest carries a new student answer. Steps is the ordered
// list of required grading steps for the item, supplied by the content/config
// provider in the calling layer.
type SubmissionCreateRequest struct {
	StudentID string          `json:"student_id" validate:"required"`
	CourseID  string          `json:"course_id" validate:"required"`
	ItemID    string          `json:"item_id" validate:"required"`
	Answer    json.RawMessage `json:"answer" validate:"required"`
	Attempt   *int            `json:"attempt" validate:"omitempty,min=1"`
	Steps     []string        `json:"steps" validate:"dive,oneof=peer self staff training ai"`
}

// SubmissionResponse is the external view of a submission.
type SubmissionResponse struct {
	UUID        string          `json:"uuid"`
	StudentID   string          `json:"student_id"`
	CourseID    string          `json:"course_id"`
	ItemID      string          `json:"item_id"`
	Attempt     int             `json:"attempt"`
	Answer      json.RawMessage `json:"answer"`
	SubmittedAt time.Time       `json:"submitted_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewSubmissionResponse maps a submission model to its response shape.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		UUID:        submission.UUID,
		StudentID:   submission.StudentItem.StudentID,
		CourseID:    submission.StudentItem.CourseID,
		ItemID:      submission.StudentItem.ItemID,
		Attempt:     submission.Attempt,
		Answer:      json.RawMessage(submission.Answer),
		SubmittedAt: submission.SubmittedAt,
		CreatedAt:   submission.CreatedAt,
	}
}
