package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/repository"
	"github.com/noah-isme/ora-go-api/pkg/ai"
)

// aiScorerID identifies assessments produced by the automated grader.
const aiScorerID = "ai"

// ErrAIGradingUnavailable indicates no automated grader is configured.
var ErrAIGradingUnavailable = errors.New("ai grading is not configured")

// AIGradingService runs the automated grader against a submission and records
// the outcome as an assessment with score type "ai".
type AIGradingService interface {
	Grade(ctx context.Context, payload dto.AIGradeRequest) (dto.AssessmentResponse, error)
}

type aiGradingService struct {
	grader      ai.Grader
	submissions repository.SubmissionRepository
	assessments AssessmentService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAIGradingService constructs the AI grading service. The grader may be nil
// when no provider is configured; grading then fails fast.
func NewAIGradingService(grader ai.Grader, submissionRepo repository.SubmissionRepository, assessments AssessmentService, validate *validator.Validate, logger zerolog.Logger) AIGradingService {
	return &aiGradingService{
		grader:      grader,
		submissions: submissionRepo,
		assessments: assessments,
		validator:   validate,
		logger:      logger.With().Str("component", "ai_grading_service").Logger(),
	}
}

func (s *aiGradingService) Grade(ctx context.Context, payload dto.AIGradeRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentResponse{}, err
	}
	if s.grader == nil {
		return dto.AssessmentResponse{}, ErrAIGradingUnavailable
	}

	submission, err := s.submissions.GetByUUID(ctx, payload.SubmissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrSubmissionNotFound
		}
		return dto.AssessmentResponse{}, err
	}

	criteria := make([]ai.CriterionSpec, 0, len(payload.Rubric.Criteria))
	for _, criterion := range payload.Rubric.Criteria {
		options := make([]ai.OptionSpec, 0, len(criterion.Options))
		for _, option := range criterion.Options {
			options = append(options, ai.OptionSpec{
				Name:        option.Name,
				Explanation: option.Explanation,
				Points:      option.Points,
			})
		}
		criteria = append(criteria, ai.CriterionSpec{
			Name:    criterion.Name,
			Prompt:  criterion.Prompt,
			Options: options,
		})
	}

	result, err := s.grader.Grade(ctx, ai.GradingInput{
		ItemPrompt: payload.ItemPrompt,
		Answer:     json.RawMessage(submission.Answer),
		Criteria:   criteria,
	})
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	s.logger.Info().
		Str("submission_uuid", payload.SubmissionUUID).
		Msg("ai grading completed")

	return s.assessments.Create(ctx, dto.AssessmentCreateRequest{
		SubmissionUUID:  payload.SubmissionUUID,
		ScorerID:        aiScorerID,
		ScoreType:       models.ScoreTypeAI,
		Rubric:          payload.Rubric,
		OptionsSelected: result.OptionsSelected,
		Feedback:        result.Feedback,
	})
}
