package models

import "time"

// Score types supported by the engine. An Assessment is a tagged variant: the
// shape is shared and type-specific validation/aggregation dispatches on the tag.
const (
	// ScoreTypePeer marks an assessment produced by another student.
	ScoreTypePeer = "peer"
	// ScoreTypeSelf marks the submitter's own assessment of their submission.
	ScoreTypeSelf = "self"
	// ScoreTypeStaff marks an authoritative assessment by course staff.
	ScoreTypeStaff = "staff"
	// ScoreTypeAI marks an assessment produced by the automated grader.
	ScoreTypeAI = "ai"
)

// KnownScoreType reports whether the tag is one of the supported score types.
func KnownScoreType(scoreType string) bool {
	switch scoreType {
	case ScoreTypePeer, ScoreTypeSelf, ScoreTypeStaff, ScoreTypeAI:
		return true
	}
	return false
}

// Assessment is one reviewer's completed scoring of one submission. Rows are
// append-only; a correction is a new assessment plus Cancelled on the stale one.
// MustGrade and MustBeGradedBy record the peer-step parameters in effect when a
// peer assessment was created so aggregation can exclude stale configurations.
type Assessment struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	SubmissionUUID string           `gorm:"size:36;not null;index" json:"submission_uuid"`
	ScorerID       string           `gorm:"size:255;not null;index" json:"scorer_id"`
	RubricID       uint             `gorm:"not null" json:"rubric_id"`
	ScoreType      string           `gorm:"size:16;not null;index" json:"score_type"`
	Feedback       string           `gorm:"type:text" json:"feedback"`
	MustGrade      int              `json:"must_grade"`
	MustBeGradedBy int              `json:"must_be_graded_by"`
	Cancelled      bool             `gorm:"not null;default:false" json:"cancelled"`
	ScoredAt       time.Time        `gorm:"not null" json:"scored_at"`
	CreatedAt      time.Time        `json:"created_at"`
	Rubric         Rubric           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"rubric"`
	Parts          []AssessmentPart `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"parts"`
}

// AssessmentPart links an assessment to exactly one selected option of one
// rubric criterion.
type AssessmentPart struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	AssessmentID uint            `gorm:"not null;index" json:"assessment_id"`
	CriterionID  uint            `gorm:"not null" json:"criterion_id"`
	OptionID     uint            `gorm:"not null" json:"option_id"`
	Feedback     string          `gorm:"type:text" json:"feedback"`
	Option       CriterionOption `gorm:"foreignKey:OptionID" json:"option"`
}

// PointsEarned sums the selected option points. Parts must be loaded with their
// options.
func (a Assessment) PointsEarned() int {
	total := 0
	for _, part := range a.Parts {
		total += part.Option.Points
	}
	return total
}

// PointsPossible is the rubric maximum for this assessment.
func (a Assessment) PointsPossible() int {
	return a.Rubric.MaxPoints()
}
