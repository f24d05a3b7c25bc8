package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// RubricRepository persists content-addressed rubrics.
type RubricRepository interface {
	// GetOrCreate resolves a rubric structure to its stored row, inserting it if
	// absent. Safe under concurrent calls with identical input: the insert is an
	// idempotent insert-or-fetch on the content hash, never pre-check-then-insert.
	GetOrCreate(ctx context.Context, rubric models.Rubric) (models.Rubric, error)
	GetByID(ctx context.Context, id uint) (models.Rubric, error)
	GetByHash(ctx context.Context, hash string) (models.Rubric, error)
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository instantiates the repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Rubric{}).
		// Preload queries run against the child table alone, so the ordering
		// column stays unqualified.
		Preload("Criteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		Preload("Criteria.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		})
}

func (r *rubricRepository) GetOrCreate(ctx context.Context, rubric models.Rubric) (models.Rubric, error) {
	rubric.ContentHash = rubric.ComputeContentHash()

	existing, err := r.GetByHash(ctx, rubric.ContentHash)
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return models.Rubric{}, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "content_hash"}}, DoNothing: true}).
		Create(&rubric)
	if result.Error != nil {
		return models.Rubric{}, result.Error
	}

	// A concurrent creator may have won the insert; the refetch resolves either
	// outcome to the single stored row.
	return r.GetByHash(ctx, rubric.ContentHash)
}

func (r *rubricRepository) GetByID(ctx context.Context, id uint) (models.Rubric, error) {
	var rubric models.Rubric
	if err := r.baseQuery(ctx).First(&rubric, id).Error; err != nil {
		return models.Rubric{}, err
	}

	return rubric, nil
}

func (r *rubricRepository) GetByHash(ctx context.Context, hash string) (models.Rubric, error) {
	var rubric models.Rubric
	if err := r.baseQuery(ctx).Where("content_hash = ?", hash).First(&rubric).Error; err != nil {
		return models.Rubric{}, err
	}

	return rubric, nil
}
