package dto

import (
	"time"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// AssessmentCreateRequest creates a self, staff or ai assessment. Peer
// assessments go through the peer endpoints instead because they must be tied
// to a claimed target.
type AssessmentCreateRequest struct {
	SubmissionUUID  string            `json:"submission_uuid" validate:"required,uuid4"`
	ScorerID        string            `json:"scorer_id" validate:"required"`
	ScoreType       string            `json:"score_type" validate:"required,oneof=self staff ai"`
	Rubric          RubricPayload     `json:"rubric" validate:"required"`
	OptionsSelected map[string]string `json:"options_selected" validate:"required,min=1"`
	OptionFeedback  map[string]string `json:"option_feedback"`
	Feedback        string            `json:"feedback"`
}

// AssessmentPartResponse is one criterion-option selection of an assessment.
type AssessmentPartResponse struct {
	Criterion string `json:"criterion"`
	Option    string `json:"option"`
	Points    int    `json:"points"`
	Feedback  string `json:"feedback,omitempty"`
}

// AssessmentResponse is the external view of an assessment.
type AssessmentResponse struct {
	ID             uint                     `json:"id"`
	SubmissionUUID string                   `json:"submission_uuid"`
	ScorerID       string                   `json:"scorer_id"`
	ScoreType      string                   `json:"score_type"`
	PointsEarned   int                      `json:"points_earned"`
	PointsPossible int                      `json:"points_possible"`
	Feedback       string                   `json:"feedback,omitempty"`
	Parts          []AssessmentPartResponse `json:"parts"`
	ScoredAt       time.Time                `json:"scored_at"`
}

// NewAssessmentResponse maps an assessment model (with rubric and parts loaded)
// to its response shape.
func NewAssessmentResponse(assessment models.Assessment) AssessmentResponse {
	parts := make([]AssessmentPartResponse, 0, len(assessment.Parts))
	for _, part := range assessment.Parts {
		criterionName := ""
		if criterion, ok := assessment.Rubric.CriterionByID(part.CriterionID); ok {
			criterionName = criterion.Name
		}
		parts = append(parts, AssessmentPartResponse{
			Criterion: criterionName,
			Option:    part.Option.Name,
			Points:    part.Option.Points,
			Feedback:  part.Feedback,
		})
	}

	return AssessmentResponse{
		ID:             assessment.ID,
		SubmissionUUID: assessment.SubmissionUUID,
		ScorerID:       assessment.ScorerID,
		ScoreType:      assessment.ScoreType,
		PointsEarned:   assessment.PointsEarned(),
		PointsPossible: assessment.PointsPossible(),
		Feedback:       assessment.Feedback,
		Parts:          parts,
		ScoredAt:       assessment.ScoredAt,
	}
}

// NewAssessmentResponseSlice maps a list of assessments.
func NewAssessmentResponseSlice(assessments []models.Assessment) []AssessmentResponse {
	responses := make([]AssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		responses = append(responses, NewAssessmentResponse(assessment))
	}
	return responses
}
