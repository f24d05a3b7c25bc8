package events

import (
	"time"

	"github.com/noah-isme/ora-go-api/internal/dto"
)

// SubmissionCreated announces a newly recorded submission.
type SubmissionCreated struct {
	SubmissionUUID string    `json:"submission_uuid"`
	CourseID       string    `json:"course_id"`
	ItemID         string    `json:"item_id"`
	Attempt        int       `json:"attempt"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// AssessmentCreated announces a stored assessment of any score type.
type AssessmentCreated struct {
	SubmissionUUID string    `json:"submission_uuid"`
	ScoreType      string    `json:"score_type"`
	ScorerID       string    `json:"scorer_id"`
	ScoredAt       time.Time `json:"scored_at"`
}

// WorkflowStatusChanged announces a workflow transition.
type WorkflowStatusChanged struct {
	SubmissionUUID string    `json:"submission_uuid"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	ChangedAt      time.Time `json:"changed_at"`
}

// ScoreReleased announces the final score computed when a workflow reached
// done. This is the hand-off to the external score-publishing collaborator.
type ScoreReleased struct {
	SubmissionUUID string    `json:"submission_uuid"`
	CourseID       string    `json:"course_id"`
	ItemID         string    `json:"item_id"`
	PointsEarned   float64   `json:"points_earned"`
	PointsPossible int       `json:"points_possible"`
	ReleasedAt     time.Time `json:"released_at"`
}

// AssessmentCompleted is consumed from background grading collaborators
// (staff tooling, the AI grader) and triggers a workflow refresh.
type AssessmentCompleted struct {
	SubmissionUUID string                   `json:"submission_uuid"`
	ScoreType      string                   `json:"score_type"`
	Requirements   dto.WorkflowRequirements `json:"requirements"`
}
