package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// ErrDuplicateWorkflow indicates a second workflow creation for the same
// submission UUID. The unique index on submission_uuid is the enforcement
// boundary; callers treat the duplicate as benign idempotency.
var ErrDuplicateWorkflow = errors.New("workflow already exists for submission")

// WorkflowRepository owns AssessmentWorkflow rows. Status mutations go through
// CompareAndSetStatus so concurrent advance calls cannot clobber each other.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.AssessmentWorkflow) error
	GetBySubmissionUUID(ctx context.Context, submissionUUID string) (models.AssessmentWorkflow, error)
	// CompareAndSetStatus transitions the workflow only if its status still
	// matches expected, optionally persisting the released score. Reports
	// whether the row was updated.
	CompareAndSetStatus(ctx context.Context, workflowID uint, expected, next string, earned *float64, possible *int) (bool, error)
	SaveStep(ctx context.Context, step *models.AssessmentWorkflowStep) error
	CreateCancellation(ctx context.Context, cancellation *models.AssessmentWorkflowCancellation) error
}

type workflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository instantiates the repository.
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Create(ctx context.Context, workflow *models.AssessmentWorkflow) error {
	err := r.db.WithContext(ctx).Create(workflow).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateWorkflow
	}

	return err
}

func (r *workflowRepository) GetBySubmissionUUID(ctx context.Context, submissionUUID string) (models.AssessmentWorkflow, error) {
	var workflow models.AssessmentWorkflow
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("assessment_workflow_steps.position ASC")
		}).
		Preload("Cancellations").
		Where("submission_uuid = ?", submissionUUID).
		First(&workflow).Error
	if err != nil {
		return models.AssessmentWorkflow{}, err
	}

	return workflow, nil
}

func (r *workflowRepository) CompareAndSetStatus(ctx context.Context, workflowID uint, expected, next string, earned *float64, possible *int) (bool, error) {
	updates := map[string]interface{}{
		"status":            next,
		"status_changed_at": time.Now(),
	}
	if earned != nil {
		updates["points_earned"] = *earned
	}
	if possible != nil {
		updates["points_possible"] = *possible
	}

	result := r.db.WithContext(ctx).Model(&models.AssessmentWorkflow{}).
		Where("id = ? AND status = ?", workflowID, expected).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *workflowRepository) SaveStep(ctx context.Context, step *models.AssessmentWorkflowStep) error {
	return r.db.WithContext(ctx).Model(&models.AssessmentWorkflowStep{}).
		Where("id = ?", step.ID).
		Updates(map[string]interface{}{
			"submitter_completed_at":  step.SubmitterCompletedAt,
			"assessment_completed_at": step.AssessmentCompletedAt,
		}).Error
}

func (r *workflowRepository) CreateCancellation(ctx context.Context, cancellation *models.AssessmentWorkflowCancellation) error {
	return r.db.WithContext(ctx).Create(cancellation).Error
}
