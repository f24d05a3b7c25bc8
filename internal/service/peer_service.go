package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/events"
	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/observability"
	"github.com/noah-isme/ora-go-api/internal/repository"
)

// PeerServiceConfig tunes the claim transaction.
type PeerServiceConfig struct {
	// ClaimTTL is how long an unscored claim keeps counting toward scarcity.
	ClaimTTL time.Duration
	// ClaimRetries bounds retries of the claim transaction under contention.
	ClaimRetries int
	// RetryBackoff is the base delay between claim retries, scaled linearly.
	RetryBackoff time.Duration
}

func (c PeerServiceConfig) withDefaults() PeerServiceConfig {
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 8 * time.Hour
	}
	if c.ClaimRetries <= 0 {
		c.ClaimRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 50 * time.Millisecond
	}
	return c
}

// PeerService distributes submissions to peer graders and records their
// assessments. A grader never receives their own submission, never the same
// target twice, and scarce targets go to at most as many concurrent graders as
// still leaves them under must_be_graded_by.
type PeerService interface {
	// GetSubmissionToAssess returns the next submission the student should
	// grade, or nil when nothing is gradable. Nothing-to-grade is an expected
	// state, not an error.
	GetSubmissionToAssess(ctx context.Context, payload dto.PeerTargetRequest) (*dto.PeerSubmissionResponse, error)
	// CreateAssessment scores the grader's open claim and records the
	// grader→target relation permanently.
	CreateAssessment(ctx context.Context, payload dto.PeerAssessmentRequest) (dto.AssessmentResponse, error)
}

type peerService struct {
	peers       repository.PeerRepository
	submissions repository.SubmissionRepository
	assessments repository.AssessmentRepository
	rubrics     repository.RubricRepository
	workflows   WorkflowService
	publisher   events.Publisher
	validator   *validator.Validate
	cfg         PeerServiceConfig
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewPeerService constructs the peer assignment engine.
func NewPeerService(peerRepo repository.PeerRepository, submissionRepo repository.SubmissionRepository, assessmentRepo repository.AssessmentRepository, rubricRepo repository.RubricRepository, workflows WorkflowService, publisher events.Publisher, validate *validator.Validate, cfg PeerServiceConfig, logger zerolog.Logger) PeerService {
	return &peerService{
		peers:       peerRepo,
		submissions: submissionRepo,
		assessments: assessmentRepo,
		rubrics:     rubricRepo,
		workflows:   workflows,
		publisher:   publisher,
		validator:   validate,
		cfg:         cfg.withDefaults(),
		logger:      logger.With().Str("component", "peer_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/ora-go-api/internal/service/peer"),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

func (s *peerService) GetSubmissionToAssess(ctx context.Context, payload dto.PeerTargetRequest) (*dto.PeerSubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "peer.get_submission_to_assess", trace.WithAttributes(
		attribute.String("submission_uuid", payload.SubmissionUUID),
		attribute.Int("must_be_graded_by", payload.MustBeGradedBy),
	))
	defer span.End()

	scorer, err := s.peers.GetWorkflowBySubmission(ctx, payload.SubmissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	// An in-progress claim is re-served instead of handing out a second target.
	open, err := s.peers.OpenClaim(ctx, scorer.ID, s.cfg.ClaimTTL)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return s.gradableView(ctx, open.SubmissionUUID)
	}

	item, err := s.claimWithRetry(ctx, scorer, payload.MustBeGradedBy)
	if err != nil {
		return nil, err
	}
	if item == nil {
		observability.PeerClaims().WithLabelValues("empty").Inc()
		return nil, nil
	}

	observability.PeerClaims().WithLabelValues("claimed").Inc()
	s.logger.Info().
		Str("scorer_submission_uuid", payload.SubmissionUUID).
		Str("target_submission_uuid", item.SubmissionUUID).
		Msg("peer target claimed")

	return s.gradableView(ctx, item.SubmissionUUID)
}

// claimWithRetry runs the atomic claim, retrying with linear backoff when the
// transaction aborts under contention.
func (s *peerService) claimWithRetry(ctx context.Context, scorer models.PeerWorkflow, mustBeGradedBy int) (*models.PeerWorkflowItem, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.ClaimRetries; attempt++ {
		if attempt > 0 {
			observability.PeerClaimRetries().Inc()
			s.sleep(s.cfg.RetryBackoff * time.Duration(attempt))
		}

		item, err := s.peers.ClaimTarget(ctx, scorer, mustBeGradedBy, s.cfg.ClaimTTL)
		if err == nil {
			return item, nil
		}
		lastErr = err
		s.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("peer claim transaction aborted")
	}

	observability.PeerClaims().WithLabelValues("conflict").Inc()
	s.logger.Error().Err(lastErr).Msg("peer claim retries exhausted")
	return nil, ErrPeerAssessmentWorkflow
}

func (s *peerService) gradableView(ctx context.Context, submissionUUID string) (*dto.PeerSubmissionResponse, error) {
	submission, err := s.submissions.GetByUUID(ctx, submissionUUID)
	if err != nil {
		return nil, err
	}

	view := dto.NewPeerSubmissionResponse(submission)
	return &view, nil
}

func (s *peerService) CreateAssessment(ctx context.Context, payload dto.PeerAssessmentRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "peer.create_assessment", trace.WithAttributes(
		attribute.String("scorer_submission_uuid", payload.ScorerSubmissionUUID),
	))
	defer span.End()

	scorer, err := s.peers.GetWorkflowBySubmission(ctx, payload.ScorerSubmissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrSubmissionNotFound
		}
		return dto.AssessmentResponse{}, err
	}

	claim, err := s.peers.OpenClaim(ctx, scorer.ID, s.cfg.ClaimTTL)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	if claim == nil {
		return dto.AssessmentResponse{}, ErrNoClaimedSubmission
	}

	assessment, err := buildAssessment(ctx, s.rubrics, s.assessments, s.now(), buildAssessmentInput{
		submissionUUID:  claim.SubmissionUUID,
		scorerID:        scorer.StudentID,
		scoreType:       models.ScoreTypePeer,
		rubricPayload:   payload.Rubric,
		optionsSelected: payload.OptionsSelected,
		optionFeedback:  payload.OptionFeedback,
		feedback:        payload.Feedback,
		mustGrade:       payload.MustGrade,
		mustBeGradedBy:  payload.MustBeGradedBy,
	})
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	if err := s.peers.AttachAssessment(ctx, scorer.ID, claim.SubmissionUUID, assessment.ID); err != nil {
		return dto.AssessmentResponse{}, err
	}

	s.publisher.AssessmentCreated(ctx, events.AssessmentCreated{
		SubmissionUUID: assessment.SubmissionUUID,
		ScoreType:      models.ScoreTypePeer,
		ScorerID:       assessment.ScorerID,
		ScoredAt:       assessment.ScoredAt,
	})

	requirements := dto.WorkflowRequirements{Peer: dto.PeerRequirements{
		MustGrade:      payload.MustGrade,
		MustBeGradedBy: payload.MustBeGradedBy,
	}}

	graded, err := s.peers.GradedCount(ctx, scorer.ID)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	if graded >= int64(payload.MustGrade) {
		if err := s.peers.MarkCompleted(ctx, scorer.ID, s.now()); err != nil {
			return dto.AssessmentResponse{}, err
		}
		// The grader may have just finished their own peer obligation.
		s.refreshWorkflow(ctx, payload.ScorerSubmissionUUID, requirements)
	}

	gradedBy, err := s.peers.GradedByCount(ctx, claim.SubmissionUUID)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	if gradedBy >= int64(payload.MustBeGradedBy) {
		target, err := s.peers.GetWorkflowBySubmission(ctx, claim.SubmissionUUID)
		if err == nil {
			if err := s.peers.MarkGradingCompleted(ctx, target.ID, s.now()); err != nil {
				s.logger.Warn().Err(err).Str("submission_uuid", claim.SubmissionUUID).Msg("failed to mark grading completed")
			}
		}
		// Forward-progress hint for the target's workflow. Not load-bearing: the
		// target's own refresh on read recomputes status from the store.
		s.refreshWorkflow(ctx, claim.SubmissionUUID, requirements)
	}

	s.logger.Info().
		Str("scorer_submission_uuid", payload.ScorerSubmissionUUID).
		Str("target_submission_uuid", claim.SubmissionUUID).
		Int64("graded", graded).
		Msg("peer assessment created")

	return dto.NewAssessmentResponse(assessment), nil
}

func (s *peerService) refreshWorkflow(ctx context.Context, submissionUUID string, requirements dto.WorkflowRequirements) {
	if _, err := s.workflows.Update(ctx, submissionUUID, requirements); err != nil {
		s.logger.Warn().Err(err).
			Str("submission_uuid", submissionUUID).
			Msg("workflow refresh after peer assessment failed")
	}
}
