package models

import (
	"time"
)

// Workflow statuses. Step statuses carry the name of the step the submitter must
// work on next; waiting means the submitter is done but assessments of their
// submission are still outstanding. Done and cancelled are terminal.
const (
	StatusPeer      = "peer"
	StatusSelf      = "self"
	StatusStaff     = "staff"
	StatusTraining  = "training"
	StatusAI        = "ai"
	StatusWaiting   = "waiting"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
)

// AssessmentWorkflow is the per-submission orchestration record: which steps are
// required, which are complete and what the released score is. Exactly one row
// exists per submission UUID; the unique index is the idempotency boundary for
// workflow creation. Status transitions only move forward along the configured
// step order or jump to a terminal state.
type AssessmentWorkflow struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SubmissionUUID  string    `gorm:"size:36;not null;uniqueIndex" json:"submission_uuid"`
	CourseID        string    `gorm:"size:255;not null;index:idx_workflow_course_item" json:"course_id"`
	ItemID          string    `gorm:"size:255;not null;index:idx_workflow_course_item" json:"item_id"`
	Status          string    `gorm:"size:16;not null;index" json:"status"`
	StatusChangedAt time.Time `gorm:"not null" json:"status_changed_at"`
	// PointsEarned is fractional: peer criterion medians over an even number of
	// assessments average the two middle values.
	PointsEarned   *float64                         `json:"points_earned"`
	PointsPossible *int                             `json:"points_possible"`
	CreatedAt      time.Time                        `json:"created_at"`
	// The children reference this row through WorkflowID; the association is
	// spelled out because the field does not follow the parent struct's name.
	Steps          []AssessmentWorkflowStep         `gorm:"foreignKey:WorkflowID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"steps"`
	Cancellations  []AssessmentWorkflowCancellation `gorm:"foreignKey:WorkflowID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"cancellations"`
}

// AssessmentWorkflowStep is one required step of a workflow. The two timestamps
// can differ: a student may finish grading peers before peers finish grading
// them.
type AssessmentWorkflowStep struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	WorkflowID            uint       `gorm:"not null;index;uniqueIndex:idx_workflow_step" json:"workflow_id"`
	Name                  string     `gorm:"size:16;not null;uniqueIndex:idx_workflow_step" json:"name"`
	Position              int        `gorm:"not null" json:"position"`
	SubmitterCompletedAt  *time.Time `json:"submitter_completed_at"`
	AssessmentCompletedAt *time.Time `json:"assessment_completed_at"`
}

// AssessmentWorkflowCancellation records who cancelled a workflow, when and why.
type AssessmentWorkflowCancellation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkflowID  uint      `gorm:"not null;index" json:"workflow_id"`
	CancelledBy string    `gorm:"size:255;not null" json:"cancelled_by"`
	Comments    string    `gorm:"type:text" json:"comments"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsTerminal reports whether no further status transitions are allowed.
func (w AssessmentWorkflow) IsTerminal() bool {
	return w.Status == StatusDone || w.Status == StatusCancelled
}

// StepNames returns the configured step names in position order. Steps must be
// loaded ordered by position.
func (w AssessmentWorkflow) StepNames() []string {
	names := make([]string, 0, len(w.Steps))
	for _, step := range w.Steps {
		names = append(names, step.Name)
	}
	return names
}

// StepByName finds a step row by name.
func (w *AssessmentWorkflow) StepByName(name string) *AssessmentWorkflowStep {
	for i := range w.Steps {
		if w.Steps[i].Name == name {
			return &w.Steps[i]
		}
	}
	return nil
}
