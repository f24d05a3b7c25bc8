package ai

import (
	"context"
	"encoding/json"
)

// CriterionSpec describes one rubric criterion for the automated grader.
type CriterionSpec struct {
	Name    string       `json:"name"`
	Prompt  string       `json:"prompt"`
	Options []OptionSpec `json:"options"`
}

// OptionSpec is one selectable option of a criterion.
type OptionSpec struct {
	Name        string `json:"name"`
	Explanation string `json:"explanation"`
	Points      int    `json:"points"`
}

// GradingInput contains the artefacts needed to grade a submission against a
// rubric.
type GradingInput struct {
	ItemPrompt string
	Answer     json.RawMessage
	Criteria   []CriterionSpec
}

// GradingResult is the structured outcome returned by the grader: one selected
// option per criterion plus overall feedback.
type GradingResult struct {
	OptionsSelected map[string]string      `json:"options_selected"`
	Feedback        string                 `json:"feedback"`
	Raw             map[string]interface{} `json:"raw,omitempty"`
}

// Grader describes an automated model capable of scoring a submission.
type Grader interface {
	Grade(ctx context.Context, input GradingInput) (GradingResult, error)
}
