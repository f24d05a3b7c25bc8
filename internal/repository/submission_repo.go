package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// SubmissionRepository defines data operations for student items and submissions.
type SubmissionRepository interface {
	GetOrCreateStudentItem(ctx context.Context, item models.StudentItem) (models.StudentItem, error)
	MaxAttempt(ctx context.Context, studentItemID uint) (int, error)
	Create(ctx context.Context, submission *models.Submission) error
	GetByUUID(ctx context.Context, submissionUUID string) (models.Submission, error)
	ListByStudentItem(ctx context.Context, studentItemID uint) ([]models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetOrCreateStudentItem(ctx context.Context, item models.StudentItem) (models.StudentItem, error) {
	fetch := func() (models.StudentItem, error) {
		var found models.StudentItem
		err := r.db.WithContext(ctx).
			Where("student_id = ? AND course_id = ? AND item_id = ?", item.StudentID, item.CourseID, item.ItemID).
			First(&found).Error
		return found, err
	}

	if found, err := fetch(); err == nil {
		return found, nil
	} else if err != gorm.ErrRecordNotFound {
		return models.StudentItem{}, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&item)
	if result.Error != nil {
		return models.StudentItem{}, result.Error
	}

	return fetch()
}

func (r *submissionRepository) MaxAttempt(ctx context.Context, studentItemID uint) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("student_item_id = ?", studentItemID).
		Select("MAX(attempt)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}

	return *max, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByUUID(ctx context.Context, submissionUUID string) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("StudentItem").
		Where("uuid = ?", submissionUUID).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByStudentItem(ctx context.Context, studentItemID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("student_item_id = ?", studentItemID).
		Order("attempt DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}
