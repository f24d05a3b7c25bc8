package dto

import "github.com/noah-isme/ora-go-api/internal/models"

// RubricPayload describes a rubric structure as supplied by callers. Slice
// order defines the canonical order numbers.
type RubricPayload struct {
	Criteria []CriterionPayload `json:"criteria" validate:"required,min=1,dive"`
}

// CriterionPayload is one rubric criterion.
type CriterionPayload struct {
	Name    string          `json:"name" validate:"required"`
	Prompt  string          `json:"prompt"`
	Options []OptionPayload `json:"options" validate:"required,min=1,dive"`
}

// OptionPayload is one point-valued option of a criterion.
type OptionPayload struct {
	Name        string `json:"name" validate:"required"`
	Explanation string `json:"explanation"`
	Points      int    `json:"points" validate:"min=0"`
}

// ToModel converts the payload into a rubric model, assigning order numbers
// from slice positions.
func (p RubricPayload) ToModel() models.Rubric {
	criteria := make([]models.Criterion, 0, len(p.Criteria))
	for i, criterion := range p.Criteria {
		options := make([]models.CriterionOption, 0, len(criterion.Options))
		for j, option := range criterion.Options {
			options = append(options, models.CriterionOption{
				Name:        option.Name,
				Explanation: option.Explanation,
				OrderNum:    j,
				Points:      option.Points,
			})
		}
		criteria = append(criteria, models.Criterion{
			Name:     criterion.Name,
			Prompt:   criterion.Prompt,
			OrderNum: i,
			Options:  options,
		})
	}

	return models.Rubric{Criteria: criteria}
}
