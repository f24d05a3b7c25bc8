package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// AssessmentFilter narrows assessment queries.
type AssessmentFilter struct {
	ScoreType        *string
	IncludeCancelled bool
	// MustBeGradedBy, when set, keeps only peer assessments recorded under that
	// configuration.
	MustBeGradedBy *int
}

// AssessmentRepository defines data operations for assessments. Assessments are
// append-only; the only mutation is the soft-cancel flag.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	ListBySubmission(ctx context.Context, submissionUUID string, filter AssessmentFilter) ([]models.Assessment, error)
	CountBySubmission(ctx context.Context, submissionUUID string, filter AssessmentFilter) (int64, error)
	Cancel(ctx context.Context, id uint) error
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates the repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	// gorm persists the parts together with the parent row in one transaction.
	return r.db.WithContext(ctx).Omit("Rubric").Create(assessment).Error
}

func (r *assessmentRepository) filtered(ctx context.Context, submissionUUID string, filter AssessmentFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Assessment{}).
		Where("submission_uuid = ?", submissionUUID)

	if filter.ScoreType != nil {
		query = query.Where("score_type = ?", *filter.ScoreType)
	}
	if !filter.IncludeCancelled {
		query = query.Where("cancelled = ?", false)
	}
	if filter.MustBeGradedBy != nil {
		query = query.Where("must_be_graded_by = ?", *filter.MustBeGradedBy)
	}

	return query
}

func (r *assessmentRepository) ListBySubmission(ctx context.Context, submissionUUID string, filter AssessmentFilter) ([]models.Assessment, error) {
	var assessments []models.Assessment
	err := r.filtered(ctx, submissionUUID, filter).
		Preload("Parts").
		Preload("Parts.Option").
		Preload("Rubric.Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		Preload("Rubric.Criteria.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		Order("created_at DESC").
		Find(&assessments).Error
	if err != nil {
		return nil, err
	}

	return assessments, nil
}

func (r *assessmentRepository) CountBySubmission(ctx context.Context, submissionUUID string, filter AssessmentFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, submissionUUID, filter).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *assessmentRepository) Cancel(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Assessment{}).
		Where("id = ?", id).
		Update("cancelled", true).Error
}
