package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/events"
	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/repository"
)

// SubmissionService records immutable student answers and triggers workflow
// creation for each.
type SubmissionService interface {
	Create(ctx context.Context, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, submissionUUID string) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	peers       repository.PeerRepository
	workflows   WorkflowService
	publisher   events.Publisher
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(submissionRepo repository.SubmissionRepository, peerRepo repository.PeerRepository, workflows WorkflowService, publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissionRepo,
		peers:       peerRepo,
		workflows:   workflows,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Create(ctx context.Context, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	item, err := s.submissions.GetOrCreateStudentItem(ctx, models.StudentItem{
		StudentID: payload.StudentID,
		CourseID:  payload.CourseID,
		ItemID:    payload.ItemID,
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	attempt := 0
	if payload.Attempt != nil {
		attempt = *payload.Attempt
	} else {
		max, err := s.submissions.MaxAttempt(ctx, item.ID)
		if err != nil {
			return dto.SubmissionResponse{}, err
		}
		attempt = max + 1
	}

	submission := models.Submission{
		UUID:          uuid.NewString(),
		StudentItemID: item.ID,
		Attempt:       attempt,
		Answer:        datatypes.JSON(payload.Answer),
		SubmittedAt:   s.now(),
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}
	submission.StudentItem = item

	if _, err := s.workflows.Create(ctx, submission.UUID, payload.Steps, item.CourseID, item.ItemID); err != nil {
		// A duplicate workflow means an earlier create signal already landed;
		// the submission signal is at-least-once, so this is benign.
		if !errors.Is(err, ErrWorkflowExists) {
			return dto.SubmissionResponse{}, err
		}
		s.logger.Debug().Str("submission_uuid", submission.UUID).Msg("workflow already exists")
	}

	// A peer workflow is registered up front so the submission enters the
	// candidate pool as soon as the peer step is configured.
	if hasStep(payload.Steps, models.StatusPeer) {
		if _, err := s.peers.GetOrCreateWorkflow(ctx, models.PeerWorkflow{
			StudentID:      item.StudentID,
			CourseID:       item.CourseID,
			ItemID:         item.ItemID,
			SubmissionUUID: submission.UUID,
		}); err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	s.logger.Info().
		Str("submission_uuid", submission.UUID).
		Str("course_id", item.CourseID).
		Str("item_id", item.ItemID).
		Int("attempt", attempt).
		Msg("submission created")

	s.publisher.SubmissionCreated(ctx, events.SubmissionCreated{
		SubmissionUUID: submission.UUID,
		CourseID:       item.CourseID,
		ItemID:         item.ItemID,
		Attempt:        attempt,
		SubmittedAt:    submission.SubmittedAt,
	})

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Get(ctx context.Context, submissionUUID string) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByUUID(ctx, submissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func hasStep(steps []string, name string) bool {
	for _, step := range steps {
		if step == name {
			return true
		}
	}
	return false
}
