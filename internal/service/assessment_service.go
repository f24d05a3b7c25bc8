package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/events"
	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/repository"
)

// AssessmentService stores self, staff and ai assessments and lists assessments
// of any type. Peer assessments go through PeerService because they must be
// tied to a claimed target.
type AssessmentService interface {
	Create(ctx context.Context, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error)
	List(ctx context.Context, submissionUUID string, scoreType string) ([]dto.AssessmentResponse, error)
}

type assessmentService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	rubrics     repository.RubricRepository
	workflows   WorkflowService
	publisher   events.Publisher
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssessmentService constructs an AssessmentService instance.
func NewAssessmentService(assessmentRepo repository.AssessmentRepository, submissionRepo repository.SubmissionRepository, rubricRepo repository.RubricRepository, workflows WorkflowService, publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger) AssessmentService {
	return &assessmentService{
		assessments: assessmentRepo,
		submissions: submissionRepo,
		rubrics:     rubricRepo,
		workflows:   workflows,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "assessment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assessmentService) Create(ctx context.Context, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentResponse{}, err
	}

	submission, err := s.submissions.GetByUUID(ctx, payload.SubmissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrSubmissionNotFound
		}
		return dto.AssessmentResponse{}, err
	}

	// Type-specific validation dispatches on the score type tag.
	switch payload.ScoreType {
	case models.ScoreTypeSelf:
		if submission.StudentItem.StudentID != payload.ScorerID {
			return dto.AssessmentResponse{}, ErrNotSubmissionOwner
		}
		if err := s.rejectDuplicate(ctx, payload.SubmissionUUID, models.ScoreTypeSelf); err != nil {
			return dto.AssessmentResponse{}, err
		}
	case models.ScoreTypeStaff, models.ScoreTypeAI:
		// Staff and AI may re-assess; corrections append a new row.
	default:
		return dto.AssessmentResponse{}, fmt.Errorf("%w: %q", ErrUnknownStep, payload.ScoreType)
	}

	assessment, err := buildAssessment(ctx, s.rubrics, s.assessments, s.now(), buildAssessmentInput{
		submissionUUID:  payload.SubmissionUUID,
		scorerID:        payload.ScorerID,
		scoreType:       payload.ScoreType,
		rubricPayload:   payload.Rubric,
		optionsSelected: payload.OptionsSelected,
		optionFeedback:  payload.OptionFeedback,
		feedback:        payload.Feedback,
	})
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	s.logger.Info().
		Str("submission_uuid", assessment.SubmissionUUID).
		Str("score_type", assessment.ScoreType).
		Int("points_earned", assessment.PointsEarned()).
		Msg("assessment created")

	s.publisher.AssessmentCreated(ctx, events.AssessmentCreated{
		SubmissionUUID: assessment.SubmissionUUID,
		ScoreType:      assessment.ScoreType,
		ScorerID:       assessment.ScorerID,
		ScoredAt:       assessment.ScoredAt,
	})

	// Best-effort forward progress: the workflow's own refresh on read stays
	// correct even if this update never runs.
	if _, err := s.workflows.Update(ctx, assessment.SubmissionUUID, dto.WorkflowRequirements{}); err != nil {
		s.logger.Warn().Err(err).
			Str("submission_uuid", assessment.SubmissionUUID).
			Msg("workflow refresh after assessment failed")
	}

	return dto.NewAssessmentResponse(assessment), nil
}

func (s *assessmentService) List(ctx context.Context, submissionUUID string, scoreType string) ([]dto.AssessmentResponse, error) {
	filter := repository.AssessmentFilter{}
	if scoreType != "" {
		if !models.KnownScoreType(scoreType) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStep, scoreType)
		}
		filter.ScoreType = &scoreType
	}

	assessments, err := s.assessments.ListBySubmission(ctx, submissionUUID, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewAssessmentResponseSlice(assessments), nil
}

func (s *assessmentService) rejectDuplicate(ctx context.Context, submissionUUID, scoreType string) error {
	count, err := s.assessments.CountBySubmission(ctx, submissionUUID, repository.AssessmentFilter{ScoreType: &scoreType})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrSelfAssessmentExists
	}

	return nil
}

type buildAssessmentInput struct {
	submissionUUID  string
	scorerID        string
	scoreType       string
	rubricPayload   dto.RubricPayload
	optionsSelected map[string]string
	optionFeedback  map[string]string
	feedback        string
	mustGrade       int
	mustBeGradedBy  int
}

// buildAssessment validates the rubric, resolves it to its content-addressed
// row, validates the option selection against it and persists the immutable
// assessment with one part per criterion. Shared by the self/staff/ai path and
// the peer path.
func buildAssessment(ctx context.Context, rubrics repository.RubricRepository, assessments repository.AssessmentRepository, scoredAt time.Time, input buildAssessmentInput) (models.Assessment, error) {
	rubricModel := input.rubricPayload.ToModel()
	if err := rubricModel.Validate(); err != nil {
		return models.Assessment{}, err
	}

	rubric, err := rubrics.GetOrCreate(ctx, rubricModel)
	if err != nil {
		return models.Assessment{}, err
	}

	selected, err := rubric.SelectOptions(input.optionsSelected)
	if err != nil {
		return models.Assessment{}, err
	}

	parts := make([]models.AssessmentPart, 0, len(selected))
	for _, option := range selected {
		part := models.AssessmentPart{
			CriterionID: option.CriterionID,
			OptionID:    option.ID,
		}
		if criterion, ok := rubric.CriterionByID(option.CriterionID); ok {
			part.Feedback = input.optionFeedback[criterion.Name]
		}
		parts = append(parts, part)
	}

	assessment := models.Assessment{
		SubmissionUUID: input.submissionUUID,
		ScorerID:       input.scorerID,
		RubricID:       rubric.ID,
		ScoreType:      input.scoreType,
		Feedback:       input.feedback,
		MustGrade:      input.mustGrade,
		MustBeGradedBy: input.mustBeGradedBy,
		ScoredAt:       scoredAt,
		Parts:          parts,
	}
	if err := assessments.Create(ctx, &assessment); err != nil {
		return models.Assessment{}, err
	}

	assessment.Rubric = rubric
	for i := range assessment.Parts {
		for _, option := range selected {
			if option.ID == assessment.Parts[i].OptionID {
				assessment.Parts[i].Option = option
				break
			}
		}
	}

	return assessment, nil
}
