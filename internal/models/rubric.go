package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidRubric indicates a rubric description that violates the structural
// invariants: unique criterion names, contiguous order numbers starting at zero
// and non-negative option points.
var ErrInvalidRubric = errors.New("invalid rubric structure")

// ErrInvalidOptionSelection indicates an option selection that does not cover the
// rubric's criteria or names an option that does not exist.
var ErrInvalidOptionSelection = errors.New("option selection does not match rubric")

// Rubric is a content-addressed scoring template. Two structurally identical
// rubrics resolve to the same row via ContentHash, which makes stored rubrics
// immutable by construction.
type Rubric struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ContentHash string      `gorm:"size:64;not null;uniqueIndex" json:"content_hash"`
	Criteria    []Criterion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Criterion is one scored dimension of a rubric.
type Criterion struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	RubricID uint              `gorm:"not null;index" json:"rubric_id"`
	Name     string            `gorm:"size:255;not null" json:"name"`
	Prompt   string            `gorm:"type:text" json:"prompt"`
	OrderNum int               `gorm:"not null" json:"order_num"`
	Options  []CriterionOption `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"options"`
}

// CriterionOption is one selectable point value within a criterion.
type CriterionOption struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	CriterionID uint   `gorm:"not null;index" json:"criterion_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Explanation string `gorm:"type:text" json:"explanation"`
	OrderNum    int    `gorm:"not null" json:"order_num"`
	Points      int    `gorm:"not null" json:"points"`
}

type canonicalOption struct {
	Name        string `json:"name"`
	Explanation string `json:"explanation"`
	OrderNum    int    `json:"order_num"`
	Points      int    `json:"points"`
}

type canonicalCriterion struct {
	Name     string            `json:"name"`
	Prompt   string            `json:"prompt"`
	OrderNum int               `json:"order_num"`
	Options  []canonicalOption `json:"options"`
}

// CanonicalBytes serializes the rubric structure deterministically: criteria and
// options sorted by order number, database identifiers excluded. Structurally
// identical rubrics always produce identical bytes regardless of input ordering.
func (r Rubric) CanonicalBytes() []byte {
	criteria := make([]canonicalCriterion, 0, len(r.Criteria))
	for _, criterion := range r.Criteria {
		options := make([]canonicalOption, 0, len(criterion.Options))
		for _, option := range criterion.Options {
			options = append(options, canonicalOption{
				Name:        option.Name,
				Explanation: option.Explanation,
				OrderNum:    option.OrderNum,
				Points:      option.Points,
			})
		}
		sort.Slice(options, func(i, j int) bool { return options[i].OrderNum < options[j].OrderNum })

		criteria = append(criteria, canonicalCriterion{
			Name:     criterion.Name,
			Prompt:   criterion.Prompt,
			OrderNum: criterion.OrderNum,
			Options:  options,
		})
	}
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].OrderNum < criteria[j].OrderNum })

	payload, _ := json.Marshal(criteria)
	return payload
}

// ComputeContentHash returns the hex SHA-256 digest of the canonical structure.
func (r Rubric) ComputeContentHash() string {
	digest := sha256.Sum256(r.CanonicalBytes())
	return hex.EncodeToString(digest[:])
}

// Validate checks the structural invariants and returns ErrInvalidRubric with a
// description of the first violation found.
func (r Rubric) Validate() error {
	if len(r.Criteria) == 0 {
		return fmt.Errorf("%w: rubric has no criteria", ErrInvalidRubric)
	}

	names := make(map[string]struct{}, len(r.Criteria))
	orders := make(map[int]struct{}, len(r.Criteria))
	for _, criterion := range r.Criteria {
		if criterion.Name == "" {
			return fmt.Errorf("%w: criterion name must not be empty", ErrInvalidRubric)
		}
		if _, dup := names[criterion.Name]; dup {
			return fmt.Errorf("%w: duplicate criterion name %q", ErrInvalidRubric, criterion.Name)
		}
		names[criterion.Name] = struct{}{}

		if _, dup := orders[criterion.OrderNum]; dup {
			return fmt.Errorf("%w: duplicate criterion order %d", ErrInvalidRubric, criterion.OrderNum)
		}
		orders[criterion.OrderNum] = struct{}{}

		if err := validateOptions(criterion); err != nil {
			return err
		}
	}

	for i := range r.Criteria {
		if _, ok := orders[i]; !ok {
			return fmt.Errorf("%w: criterion order numbers must be contiguous from zero", ErrInvalidRubric)
		}
	}

	return nil
}

func validateOptions(criterion Criterion) error {
	if len(criterion.Options) == 0 {
		return fmt.Errorf("%w: criterion %q has no options", ErrInvalidRubric, criterion.Name)
	}

	names := make(map[string]struct{}, len(criterion.Options))
	orders := make(map[int]struct{}, len(criterion.Options))
	for _, option := range criterion.Options {
		if option.Points < 0 {
			return fmt.Errorf("%w: option %q of criterion %q has negative points", ErrInvalidRubric, option.Name, criterion.Name)
		}
		if _, dup := names[option.Name]; dup {
			return fmt.Errorf("%w: duplicate option name %q in criterion %q", ErrInvalidRubric, option.Name, criterion.Name)
		}
		names[option.Name] = struct{}{}

		if _, dup := orders[option.OrderNum]; dup {
			return fmt.Errorf("%w: duplicate option order %d in criterion %q", ErrInvalidRubric, option.OrderNum, criterion.Name)
		}
		orders[option.OrderNum] = struct{}{}
	}

	for i := range criterion.Options {
		if _, ok := orders[i]; !ok {
			return fmt.Errorf("%w: option order numbers of criterion %q must be contiguous from zero", ErrInvalidRubric, criterion.Name)
		}
	}

	return nil
}

// MaxPoints is the highest achievable score: the sum over criteria of the
// largest option point value in each criterion.
func (r Rubric) MaxPoints() int {
	total := 0
	for _, criterion := range r.Criteria {
		best := 0
		for _, option := range criterion.Options {
			if option.Points > best {
				best = option.Points
			}
		}
		total += best
	}
	return total
}

// SelectOptions resolves a criterion-name to option-name mapping against the
// rubric. Every criterion must be covered exactly and every named option must
// exist; otherwise ErrInvalidOptionSelection is returned.
func (r Rubric) SelectOptions(selections map[string]string) ([]CriterionOption, error) {
	if len(selections) != len(r.Criteria) {
		return nil, fmt.Errorf("%w: expected %d selections, got %d", ErrInvalidOptionSelection, len(r.Criteria), len(selections))
	}

	selected := make([]CriterionOption, 0, len(r.Criteria))
	for _, criterion := range r.Criteria {
		optionName, ok := selections[criterion.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing selection for criterion %q", ErrInvalidOptionSelection, criterion.Name)
		}

		found := false
		for _, option := range criterion.Options {
			if option.Name == optionName {
				selected = append(selected, option)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: criterion %q has no option %q", ErrInvalidOptionSelection, criterion.Name, optionName)
		}
	}

	return selected, nil
}

// CriterionByID looks up a criterion by primary key.
func (r Rubric) CriterionByID(id uint) (Criterion, bool) {
	for _, criterion := range r.Criteria {
		if criterion.ID == id {
			return criterion, true
		}
	}
	return Criterion{}, false
}
