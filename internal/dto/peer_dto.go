package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// PeerTargetRequest asks for the next submission the requesting student should
// grade. The student is identified by their own submission UUID.
type PeerTargetRequest struct {
	SubmissionUUID string `json:"submission_uuid" validate:"required,uuid4"`
	MustBeGradedBy int    `json:"must_be_graded_by" validate:"required,min=1"`
}

// PeerSubmissionResponse is the gradable view of a submission: the owner is
// deliberately excluded.
type PeerSubmissionResponse struct {
	SubmissionUUID string          `json:"submission_uuid"`
	Answer         json.RawMessage `json:"answer"`
	Attempt        int             `json:"attempt"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// NewPeerSubmissionResponse maps a submission for a grader, stripping owner
// identity.
func NewPeerSubmissionResponse(submission models.Submission) PeerSubmissionResponse {
	return PeerSubmissionResponse{
		SubmissionUUID: submission.UUID,
		Answer:         json.RawMessage(submission.Answer),
		Attempt:        submission.Attempt,
		SubmittedAt:    submission.SubmittedAt,
	}
}

// PeerAssessmentRequest scores the grader's currently claimed target. The
// grader is identified by their own submission UUID; the target is the open
// claim recorded when the target was handed out.
type PeerAssessmentRequest struct {
	ScorerSubmissionUUID string            `json:"scorer_submission_uuid" validate:"required,uuid4"`
	MustGrade            int               `json:"must_grade" validate:"required,min=1"`
	MustBeGradedBy       int               `json:"must_be_graded_by" validate:"required,min=1"`
	Rubric               RubricPayload     `json:"rubric" validate:"required"`
	OptionsSelected      map[string]string `json:"options_selected" validate:"required,min=1"`
	OptionFeedback       map[string]string `json:"option_feedback"`
	Feedback             string            `json:"feedback"`
}
