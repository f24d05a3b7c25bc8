package models

import "time"

// PeerWorkflow tracks one student's participation in the peer step of one item:
// the submission they own and, via items, the submissions they grade.
type PeerWorkflow struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	StudentID      string     `gorm:"size:255;not null;uniqueIndex:idx_peer_student_course_item" json:"student_id"`
	CourseID       string     `gorm:"size:255;not null;uniqueIndex:idx_peer_student_course_item;index:idx_peer_course_item" json:"course_id"`
	ItemID         string     `gorm:"size:255;not null;uniqueIndex:idx_peer_student_course_item;index:idx_peer_course_item" json:"item_id"`
	SubmissionUUID string     `gorm:"size:36;not null;uniqueIndex" json:"submission_uuid"`
	CreatedAt      time.Time  `json:"created_at"`
	// CompletedAt is set once the student has graded must_grade peers.
	CompletedAt *time.Time `json:"completed_at"`
	// GradingCompletedAt is set once the student's own submission has received
	// must_be_graded_by assessments.
	GradingCompletedAt *time.Time `json:"grading_completed_at"`
	CancelledAt        *time.Time `gorm:"index" json:"cancelled_at"`
}

// PeerWorkflowItem is one grader→target relation. A row with a nil AssessmentID
// is a live claim: the target has been handed to the grader but not scored yet.
// Claims older than the claim TTL stop counting toward scarcity.
type PeerWorkflowItem struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ScorerID       uint      `gorm:"not null;index;uniqueIndex:idx_scorer_submission" json:"scorer_id"`
	AuthorID       uint      `gorm:"not null;index" json:"author_id"`
	SubmissionUUID string    `gorm:"size:36;not null;index;uniqueIndex:idx_scorer_submission" json:"submission_uuid"`
	AssessmentID   *uint     `gorm:"index" json:"assessment_id"`
	StartedAt      time.Time `gorm:"not null;index" json:"started_at"`
}

// Graded reports whether the item carries a completed assessment.
func (i PeerWorkflowItem) Graded() bool {
	return i.AssessmentID != nil
}
