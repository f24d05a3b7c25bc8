package dto

import (
	"time"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// PeerRequirements are the peer-step parameters currently configured for an
// item.
type PeerRequirements struct {
	MustGrade      int `json:"must_grade" validate:"min=1"`
	MustBeGradedBy int `json:"must_be_graded_by" validate:"min=1"`
}

// WorkflowRequirements carries per-step parameters from the content/config
// provider into workflow evaluation.
type WorkflowRequirements struct {
	Peer PeerRequirements `json:"peer"`
}

// WorkflowStepResponse is the external view of one required step.
type WorkflowStepResponse struct {
	Name                  string     `json:"name"`
	Position              int        `json:"position"`
	SubmitterCompletedAt  *time.Time `json:"submitter_completed_at"`
	AssessmentCompletedAt *time.Time `json:"assessment_completed_at"`
}

// ScoreResponse is the released score. PointsEarned stays fractional because
// even-count peer medians average the two middle values.
type ScoreResponse struct {
	PointsEarned   float64 `json:"points_earned"`
	PointsPossible int     `json:"points_possible"`
}

// StepDetails reports per-step progress for status_details.
type StepDetails struct {
	SubmitterComplete  bool   `json:"submitter_complete"`
	AssessmentComplete bool   `json:"assessment_complete"`
	GradedCount        *int64 `json:"graded_count,omitempty"`
	GradedByCount      *int64 `json:"graded_by_count,omitempty"`
}

// WorkflowResponse is the external view of a workflow.
type WorkflowResponse struct {
	SubmissionUUID  string                 `json:"submission_uuid"`
	CourseID        string                 `json:"course_id"`
	ItemID          string                 `json:"item_id"`
	Status          string                 `json:"status"`
	StatusChangedAt time.Time              `json:"status_changed_at"`
	Steps           []WorkflowStepResponse `json:"steps"`
	Score           *ScoreResponse         `json:"score,omitempty"`
}

// WorkflowInfoResponse is the presentation-layer contract: status, per-step
// details and the released score when available.
type WorkflowInfoResponse struct {
	SubmissionUUID string                 `json:"submission_uuid"`
	Status         string                 `json:"status"`
	StatusDetails  map[string]StepDetails `json:"status_details"`
	Score          *ScoreResponse         `json:"score"`
}

// WorkflowCancelRequest records an administrative cancellation.
type WorkflowCancelRequest struct {
	Comments    string `json:"comments" validate:"required"`
	CancelledBy string `json:"cancelled_by" validate:"required"`
}

// NewWorkflowResponse maps a workflow model to its response shape.
func NewWorkflowResponse(workflow models.AssessmentWorkflow) WorkflowResponse {
	steps := make([]WorkflowStepResponse, 0, len(workflow.Steps))
	for _, step := range workflow.Steps {
		steps = append(steps, WorkflowStepResponse{
			Name:                  step.Name,
			Position:              step.Position,
			SubmitterCompletedAt:  step.SubmitterCompletedAt,
			AssessmentCompletedAt: step.AssessmentCompletedAt,
		})
	}

	response := WorkflowResponse{
		SubmissionUUID:  workflow.SubmissionUUID,
		CourseID:        workflow.CourseID,
		ItemID:          workflow.ItemID,
		Status:          workflow.Status,
		StatusChangedAt: workflow.StatusChangedAt,
		Steps:           steps,
	}
	if workflow.PointsEarned != nil && workflow.PointsPossible != nil {
		response.Score = &ScoreResponse{
			PointsEarned:   *workflow.PointsEarned,
			PointsPossible: *workflow.PointsPossible,
		}
	}

	return response
}
