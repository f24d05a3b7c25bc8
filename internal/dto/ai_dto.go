package dto

// AIGradeRequest asks the automated grader to assess a submission against a
// rubric.
type AIGradeRequest struct {
	SubmissionUUID string        `json:"submission_uuid" validate:"required,uuid4"`
	ItemPrompt     string        `json:"item_prompt"`
	Rubric         RubricPayload `json:"rubric" validate:"required"`
}
