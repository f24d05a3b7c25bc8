package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
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

// WorkflowServiceConfig tunes state-machine behavior.
type WorkflowServiceConfig struct {
	// StaffOverride makes a staff assessment short-circuit every remaining step.
	StaffOverride bool
	// UpdateRetries bounds compare-and-set attempts under concurrent updates.
	UpdateRetries int
	// CacheTTL is how long workflow info responses are cached.
	CacheTTL time.Duration
}

func (c WorkflowServiceConfig) withDefaults() WorkflowServiceConfig {
	if c.UpdateRetries <= 0 {
		c.UpdateRetries = 3
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	return c
}

// WorkflowService is the orchestrator: it exclusively owns status transitions
// of assessment workflows.
type WorkflowService interface {
	// Create registers the workflow for a submission. Idempotent at the store
	// level: a second call fails with ErrWorkflowExists and no side effects.
	Create(ctx context.Context, submissionUUID string, steps []string, courseID, itemID string) (dto.WorkflowResponse, error)
	// Update recomputes status from stored assessments, testing each configured
	// step's completion condition in order. Terminal workflows reject the call.
	Update(ctx context.Context, submissionUUID string, requirements dto.WorkflowRequirements) (dto.WorkflowResponse, error)
	// GetInfo refreshes the workflow and returns status, per-step details and
	// the released score.
	GetInfo(ctx context.Context, submissionUUID string, requirements dto.WorkflowRequirements) (dto.WorkflowInfoResponse, error)
	// Cancel is a one-way transition to cancelled from any non-terminal state.
	Cancel(ctx context.Context, submissionUUID string, payload dto.WorkflowCancelRequest) error
}

// stepProgress is the outcome of one step's completion predicate. A step can be
// done from the submitter's side while assessments of the submitter are still
// outstanding.
type stepProgress struct {
	submitterDone bool
	assessed      bool
	details       dto.StepDetails
}

// stepDefinition is a data-driven step descriptor: the state machine evaluates
// every step uniformly instead of dispatching on step-specific types.
type stepDefinition struct {
	name          string
	shortCircuits bool
	progress      func(ctx context.Context, workflow *models.AssessmentWorkflow, requirements dto.WorkflowRequirements) (stepProgress, error)
}

type workflowService struct {
	workflows   repository.WorkflowRepository
	assessments repository.AssessmentRepository
	peers       repository.PeerRepository
	scores      ScoreService
	publisher   events.Publisher
	cache       *redis.Client
	cfg         WorkflowServiceConfig
	steps       map[string]stepDefinition
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewWorkflowService constructs the state machine.
func NewWorkflowService(workflowRepo repository.WorkflowRepository, assessmentRepo repository.AssessmentRepository, peerRepo repository.PeerRepository, scores ScoreService, publisher events.Publisher, cache *redis.Client, cfg WorkflowServiceConfig, logger zerolog.Logger) WorkflowService {
	s := &workflowService{
		workflows:   workflowRepo,
		assessments: assessmentRepo,
		peers:       peerRepo,
		scores:      scores,
		publisher:   publisher,
		cache:       cache,
		cfg:         cfg.withDefaults(),
		logger:      logger.With().Str("component", "workflow_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/ora-go-api/internal/service/workflow"),
		now:         time.Now,
	}
	s.steps = s.buildStepRegistry()

	return s
}

func (s *workflowService) buildStepRegistry() map[string]stepDefinition {
	registry := map[string]stepDefinition{
		models.StatusPeer: {
			name:     models.StatusPeer,
			progress: s.peerProgress,
		},
		models.StatusSelf: {
			name:     models.StatusSelf,
			progress: s.assessmentExistsProgress(models.ScoreTypeSelf, true),
		},
		models.StatusStaff: {
			name:          models.StatusStaff,
			shortCircuits: s.cfg.StaffOverride,
			progress:      s.assessmentExistsProgress(models.ScoreTypeStaff, false),
		},
		models.StatusAI: {
			name:     models.StatusAI,
			progress: s.assessmentExistsProgress(models.ScoreTypeAI, false),
		},
	}
	// Training is the classifier-driven step: complete once the automated
	// grader's assessment has landed.
	registry[models.StatusTraining] = stepDefinition{
		name:     models.StatusTraining,
		progress: s.assessmentExistsProgress(models.ScoreTypeAI, false),
	}

	return registry
}

// peerProgress: the submitter side is met once they graded must_grade peers,
// the assessed side once must_be_graded_by peers graded them. Without current
// requirements (best-effort refreshes from non-peer paths) the recorded step
// timestamps are the only truth and are left as-is.
func (s *workflowService) peerProgress(ctx context.Context, workflow *models.AssessmentWorkflow, requirements dto.WorkflowRequirements) (stepProgress, error) {
	if requirements.Peer.MustGrade == 0 || requirements.Peer.MustBeGradedBy == 0 {
		step := workflow.StepByName(models.StatusPeer)
		progress := stepProgress{}
		if step != nil {
			progress.submitterDone = step.SubmitterCompletedAt != nil
			progress.assessed = step.AssessmentCompletedAt != nil
		}
		progress.details = dto.StepDetails{
			SubmitterComplete:  progress.submitterDone,
			AssessmentComplete: progress.assessed,
		}
		return progress, nil
	}

	peerWorkflow, err := s.peers.GetWorkflowBySubmission(ctx, workflow.SubmissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stepProgress{}, nil
		}
		return stepProgress{}, err
	}

	graded, err := s.peers.GradedCount(ctx, peerWorkflow.ID)
	if err != nil {
		return stepProgress{}, err
	}

	mustBeGradedBy := requirements.Peer.MustBeGradedBy
	gradedBy, err := s.assessments.CountBySubmission(ctx, workflow.SubmissionUUID, repository.AssessmentFilter{
		ScoreType:      ptr(models.ScoreTypePeer),
		MustBeGradedBy: &mustBeGradedBy,
	})
	if err != nil {
		return stepProgress{}, err
	}

	progress := stepProgress{
		submitterDone: graded >= int64(requirements.Peer.MustGrade),
		assessed:      gradedBy >= int64(mustBeGradedBy),
	}
	progress.details = dto.StepDetails{
		SubmitterComplete:  progress.submitterDone,
		AssessmentComplete: progress.assessed,
		GradedCount:        &graded,
		GradedByCount:      &gradedBy,
	}

	return progress, nil
}

// assessmentExistsProgress builds the predicate for steps completed by a single
// assessment. When submitterSide is true the assessment is the submitter's own
// obligation (self); otherwise the submitter has nothing to do and only waits.
func (s *workflowService) assessmentExistsProgress(scoreType string, submitterSide bool) func(context.Context, *models.AssessmentWorkflow, dto.WorkflowRequirements) (stepProgress, error) {
	return func(ctx context.Context, workflow *models.AssessmentWorkflow, _ dto.WorkflowRequirements) (stepProgress, error) {
		count, err := s.assessments.CountBySubmission(ctx, workflow.SubmissionUUID, repository.AssessmentFilter{
			ScoreType: &scoreType,
		})
		if err != nil {
			return stepProgress{}, err
		}

		exists := count > 0
		progress := stepProgress{
			submitterDone: exists || !submitterSide,
			assessed:      exists,
		}
		progress.details = dto.StepDetails{
			SubmitterComplete:  progress.submitterDone,
			AssessmentComplete: progress.assessed,
		}

		return progress, nil
	}
}

func ptr[T any](v T) *T { return &v }

func (s *workflowService) Create(ctx context.Context, submissionUUID string, steps []string, courseID, itemID string) (dto.WorkflowResponse, error) {
	for _, step := range steps {
		if _, ok := s.steps[step]; !ok {
			return dto.WorkflowResponse{}, fmt.Errorf("%w: %q", ErrUnknownStep, step)
		}
	}

	status := models.StatusDone
	if len(steps) > 0 {
		status = steps[0]
	}

	workflow := models.AssessmentWorkflow{
		SubmissionUUID:  submissionUUID,
		CourseID:        courseID,
		ItemID:          itemID,
		Status:          status,
		StatusChangedAt: s.now(),
	}
	for i, step := range steps {
		workflow.Steps = append(workflow.Steps, models.AssessmentWorkflowStep{
			Name:     step,
			Position: i,
		})
	}

	if err := s.workflows.Create(ctx, &workflow); err != nil {
		if errors.Is(err, repository.ErrDuplicateWorkflow) {
			return dto.WorkflowResponse{}, ErrWorkflowExists
		}
		return dto.WorkflowResponse{}, err
	}

	observability.WorkflowTransitions().WithLabelValues("", status).Inc()
	s.logger.Info().
		Str("submission_uuid", submissionUUID).
		Strs("steps", steps).
		Str("status", status).
		Msg("workflow created")

	return dto.NewWorkflowResponse(workflow), nil
}

func (s *workflowService) Update(ctx context.Context, submissionUUID string, requirements dto.WorkflowRequirements) (dto.WorkflowResponse, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.update", trace.WithAttributes(
		attribute.String("submission_uuid", submissionUUID),
	))
	defer span.End()

	workflow, err := s.load(ctx, submissionUUID)
	if err != nil {
		return dto.WorkflowResponse{}, err
	}
	if workflow.IsTerminal() {
		return dto.WorkflowResponse{}, ErrWorkflowTerminal
	}

	workflow, _, err = s.advance(ctx, workflow, requirements)
	if err != nil {
		return dto.WorkflowResponse{}, err
	}

	return dto.NewWorkflowResponse(workflow), nil
}

func (s *workflowService) load(ctx context.Context, submissionUUID string) (models.AssessmentWorkflow, error) {
	workflow, err := s.workflows.GetBySubmissionUUID(ctx, submissionUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssessmentWorkflow{}, ErrWorkflowNotFound
		}
		return models.AssessmentWorkflow{}, err
	}

	return workflow, nil
}

// advance recomputes status and applies it under compare-and-set, re-reading
// and retrying a bounded number of times when a concurrent update wins.
func (s *workflowService) advance(ctx context.Context, workflow models.AssessmentWorkflow, requirements dto.WorkflowRequirements) (models.AssessmentWorkflow, map[string]dto.StepDetails, error) {
	for attempt := 0; attempt < s.cfg.UpdateRetries; attempt++ {
		target, progress, err := s.evaluate(ctx, &workflow, requirements)
		if err != nil {
			return models.AssessmentWorkflow{}, nil, err
		}

		if err := s.recordStepTimestamps(ctx, &workflow, progress); err != nil {
			return models.AssessmentWorkflow{}, nil, err
		}

		details := make(map[string]dto.StepDetails, len(progress))
		for name, p := range progress {
			details[name] = p.details
		}

		if target == workflow.Status {
			return workflow, details, nil
		}

		var earned *float64
		var possible *int
		if target == models.StatusDone {
			earned, possible, err = s.computeScore(ctx, &workflow, requirements)
			if err != nil {
				return models.AssessmentWorkflow{}, nil, err
			}
		}

		updated, err := s.workflows.CompareAndSetStatus(ctx, workflow.ID, workflow.Status, target, earned, possible)
		if err != nil {
			return models.AssessmentWorkflow{}, nil, err
		}
		if updated {
			from := workflow.Status
			observability.WorkflowTransitions().WithLabelValues(from, target).Inc()
			s.invalidateInfoCache(ctx, workflow.SubmissionUUID)

			workflow.Status = target
			workflow.StatusChangedAt = s.now()
			workflow.PointsEarned = earned
			workflow.PointsPossible = possible

			s.publisher.WorkflowStatusChanged(ctx, events.WorkflowStatusChanged{
				SubmissionUUID: workflow.SubmissionUUID,
				From:           from,
				To:             target,
				ChangedAt:      workflow.StatusChangedAt,
			})
			if target == models.StatusDone && earned != nil && possible != nil {
				s.publisher.ScoreReleased(ctx, events.ScoreReleased{
					SubmissionUUID: workflow.SubmissionUUID,
					CourseID:       workflow.CourseID,
					ItemID:         workflow.ItemID,
					PointsEarned:   *earned,
					PointsPossible: *possible,
					ReleasedAt:     workflow.StatusChangedAt,
				})
			}

			s.logger.Info().
				Str("submission_uuid", workflow.SubmissionUUID).
				Str("from", from).
				Str("to", target).
				Msg("workflow status changed")

			return workflow, details, nil
		}

		// Lost the race: a concurrent update moved the workflow first.
		observability.WorkflowConflicts().Inc()
		workflow, err = s.load(ctx, workflow.SubmissionUUID)
		if err != nil {
			return models.AssessmentWorkflow{}, nil, err
		}
		if workflow.IsTerminal() {
			return workflow, details, nil
		}
	}

	return models.AssessmentWorkflow{}, nil, ErrWorkflowConflict
}

// evaluate determines the target status: the staff short-circuit first, then
// the ordered step scan. The current status is the first step whose submitter
// obligation is unmet; waiting when the submitter is done but assessments are
// outstanding; done when every side of every step is complete.
func (s *workflowService) evaluate(ctx context.Context, workflow *models.AssessmentWorkflow, requirements dto.WorkflowRequirements) (string, map[string]stepProgress, error) {
	progress := make(map[string]stepProgress, len(workflow.Steps))

	if s.cfg.StaffOverride {
		staffCount, err := s.assessments.CountBySubmission(ctx, workflow.SubmissionUUID, repository.AssessmentFilter{
			ScoreType: ptr(models.ScoreTypeStaff),
		})
		if err != nil {
			return "", nil, err
		}
		if staffCount > 0 {
			return models.StatusDone, progress, nil
		}
	}

	target := ""
	allAssessed := true
	for i := range workflow.Steps {
		step := workflow.Steps[i]
		definition, ok := s.steps[step.Name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownStep, step.Name)
		}

		p, err := definition.progress(ctx, workflow, requirements)
		if err != nil {
			return "", nil, err
		}
		progress[step.Name] = p

		if target == "" && !p.submitterDone {
			target = step.Name
		}
		if !p.assessed {
			allAssessed = false
		}
	}

	if target != "" {
		return target, progress, nil
	}
	if !allAssessed {
		return models.StatusWaiting, progress, nil
	}

	return models.StatusDone, progress, nil
}

func (s *workflowService) recordStepTimestamps(ctx context.Context, workflow *models.AssessmentWorkflow, progress map[string]stepProgress) error {
	now := s.now()
	for i := range workflow.Steps {
		step := &workflow.Steps[i]
		p, ok := progress[step.Name]
		if !ok {
			continue
		}

		changed := false
		if p.submitterDone && step.SubmitterCompletedAt == nil {
			step.SubmitterCompletedAt = &now
			changed = true
		}
		if p.assessed && step.AssessmentCompletedAt == nil {
			step.AssessmentCompletedAt = &now
			changed = true
		}
		if changed {
			if err := s.workflows.SaveStep(ctx, step); err != nil {
				return err
			}
		}
	}

	return nil
}

// computeScore picks the released score once every step is complete. A staff
// assessment is authoritative when the override is enabled; otherwise the last
// configured step that produces a score wins, so with steps ["peer","self"]
// the self assessment determines the grade.
func (s *workflowService) computeScore(ctx context.Context, workflow *models.AssessmentWorkflow, requirements dto.WorkflowRequirements) (*float64, *int, error) {
	if s.cfg.StaffOverride {
		if earned, possible, ok, err := s.latestAssessmentScore(ctx, workflow.SubmissionUUID, models.ScoreTypeStaff); err != nil {
			return nil, nil, err
		} else if ok {
			return &earned, &possible, nil
		}
	}

	for i := len(workflow.Steps) - 1; i >= 0; i-- {
		switch workflow.Steps[i].Name {
		case models.StatusSelf:
			if earned, possible, ok, err := s.latestAssessmentScore(ctx, workflow.SubmissionUUID, models.ScoreTypeSelf); err != nil {
				return nil, nil, err
			} else if ok {
				return &earned, &possible, nil
			}
		case models.StatusPeer:
			earned, possible, ok, err := s.scores.MedianTotal(ctx, workflow.SubmissionUUID, requirements.Peer.MustBeGradedBy)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				return &earned, &possible, nil
			}
		case models.StatusStaff:
			if earned, possible, ok, err := s.latestAssessmentScore(ctx, workflow.SubmissionUUID, models.ScoreTypeStaff); err != nil {
				return nil, nil, err
			} else if ok {
				return &earned, &possible, nil
			}
		case models.StatusAI, models.StatusTraining:
			if earned, possible, ok, err := s.latestAssessmentScore(ctx, workflow.SubmissionUUID, models.ScoreTypeAI); err != nil {
				return nil, nil, err
			} else if ok {
				return &earned, &possible, nil
			}
		}
	}

	return nil, nil, nil
}

func (s *workflowService) latestAssessmentScore(ctx context.Context, submissionUUID, scoreType string) (float64, int, bool, error) {
	assessments, err := s.assessments.ListBySubmission(ctx, submissionUUID, repository.AssessmentFilter{
		ScoreType: &scoreType,
	})
	if err != nil {
		return 0, 0, false, err
	}
	if len(assessments) == 0 {
		return 0, 0, false, nil
	}

	// Newest first: a correction supersedes earlier assessments of this type.
	latest := assessments[0]
	return float64(latest.PointsEarned()), latest.PointsPossible(), true, nil
}

// cachedWorkflowInfo is the cache entry for GetInfo. The requirements the
// response was computed under travel with it: an entry computed under a
// different configuration is recomputed, never served. Keeping one key per
// submission lets transitions invalidate with a single exact delete.
type cachedWorkflowInfo struct {
	Requirements dto.WorkflowRequirements `json:"requirements"`
	Info         dto.WorkflowInfoResponse `json:"info"`
}

func (s *workflowService) GetInfo(ctx context.Context, submissionUUID string, requirements dto.WorkflowRequirements) (dto.WorkflowInfoResponse, error) {
	cacheKey := s.infoCacheKey(submissionUUID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var entry cachedWorkflowInfo
			if unmarshalErr := json.Unmarshal([]byte(cached), &entry); unmarshalErr == nil && entry.Requirements == requirements {
				s.logger.Debug().Str("submission_uuid", submissionUUID).Msg("workflow info cache hit")
				return entry.Info, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read workflow info cache")
		}
	}

	workflow, err := s.load(ctx, submissionUUID)
	if err != nil {
		return dto.WorkflowInfoResponse{}, err
	}

	details := make(map[string]dto.StepDetails)
	if !workflow.IsTerminal() {
		// Refresh on read: status is recomputed from the store so a missed
		// forward-progress hint never leaves the workflow stale.
		workflow, details, err = s.advance(ctx, workflow, requirements)
		if err != nil {
			return dto.WorkflowInfoResponse{}, err
		}
	}

	response := dto.WorkflowInfoResponse{
		SubmissionUUID: submissionUUID,
		Status:         workflow.Status,
		StatusDetails:  details,
	}
	if workflow.PointsEarned != nil && workflow.PointsPossible != nil {
		response.Score = &dto.ScoreResponse{
			PointsEarned:   *workflow.PointsEarned,
			PointsPossible: *workflow.PointsPossible,
		}
	}

	if s.cache != nil {
		if payload, err := json.Marshal(cachedWorkflowInfo{Requirements: requirements, Info: response}); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.CacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store workflow info cache")
			}
		}
	}

	return response, nil
}

func (s *workflowService) Cancel(ctx context.Context, submissionUUID string, payload dto.WorkflowCancelRequest) error {
	workflow, err := s.load(ctx, submissionUUID)
	if err != nil {
		return err
	}

	// Cancellation side effects must never outrun the status change, so the
	// compare-and-set is retried like any other transition and the call fails
	// outright when contention persists.
	cancelled := false
	for attempt := 0; attempt < s.cfg.UpdateRetries; attempt++ {
		if workflow.IsTerminal() {
			return ErrWorkflowTerminal
		}

		updated, err := s.workflows.CompareAndSetStatus(ctx, workflow.ID, workflow.Status, models.StatusCancelled, nil, nil)
		if err != nil {
			return err
		}
		if updated {
			cancelled = true
			break
		}

		// A concurrent transition landed first; only a terminal one blocks the
		// cancellation.
		observability.WorkflowConflicts().Inc()
		workflow, err = s.load(ctx, submissionUUID)
		if err != nil {
			return err
		}
	}
	if !cancelled {
		return ErrWorkflowConflict
	}

	if err := s.workflows.CreateCancellation(ctx, &models.AssessmentWorkflowCancellation{
		WorkflowID:  workflow.ID,
		CancelledBy: payload.CancelledBy,
		Comments:    payload.Comments,
	}); err != nil {
		return err
	}

	// The cancelled submission leaves the peer candidate pool.
	if peerWorkflow, err := s.peers.GetWorkflowBySubmission(ctx, submissionUUID); err == nil {
		if err := s.peers.MarkCancelled(ctx, peerWorkflow.ID, s.now()); err != nil {
			s.logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("failed to cancel peer workflow")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	observability.WorkflowTransitions().WithLabelValues(workflow.Status, models.StatusCancelled).Inc()
	s.invalidateInfoCache(ctx, submissionUUID)
	s.publisher.WorkflowStatusChanged(ctx, events.WorkflowStatusChanged{
		SubmissionUUID: submissionUUID,
		From:           workflow.Status,
		To:             models.StatusCancelled,
		ChangedAt:      s.now(),
	})

	s.logger.Info().
		Str("submission_uuid", submissionUUID).
		Str("cancelled_by", payload.CancelledBy).
		Msg("workflow cancelled")

	return nil
}

func (s *workflowService) infoCacheKey(submissionUUID string) string {
	return fmt.Sprintf("workflow:info:%s", submissionUUID)
}

func (s *workflowService) invalidateInfoCache(ctx context.Context, submissionUUID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.infoCacheKey(submissionUUID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate workflow info cache")
	}
}
