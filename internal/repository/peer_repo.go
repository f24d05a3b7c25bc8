package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/ora-go-api/internal/models"
)

// PeerRepository owns PeerWorkflow and PeerWorkflowItem rows. Only this
// repository creates items; the claim transaction is the concurrency boundary
// that keeps two graders from receiving the same scarce submission.
type PeerRepository interface {
	GetOrCreateWorkflow(ctx context.Context, workflow models.PeerWorkflow) (models.PeerWorkflow, error)
	GetWorkflowBySubmission(ctx context.Context, submissionUUID string) (models.PeerWorkflow, error)
	// OpenClaim returns the grader's live unscored claim, if any. A grader with
	// an open claim is re-served the same target instead of a new one.
	OpenClaim(ctx context.Context, scorerID uint, claimTTL time.Duration) (*models.PeerWorkflowItem, error)
	// ClaimTarget picks the gradable submission with the fewest reviews (graded
	// plus live claims), oldest first on ties, and inserts the claim item in the
	// same transaction as the scarcity count. Returns nil when nothing is
	// gradable.
	ClaimTarget(ctx context.Context, scorer models.PeerWorkflow, mustBeGradedBy int, claimTTL time.Duration) (*models.PeerWorkflowItem, error)
	// AttachAssessment marks the grader's item for the target submission as
	// scored. The relation is append-only.
	AttachAssessment(ctx context.Context, scorerID uint, submissionUUID string, assessmentID uint) error
	GradedCount(ctx context.Context, scorerID uint) (int64, error)
	GradedByCount(ctx context.Context, submissionUUID string) (int64, error)
	HasGraded(ctx context.Context, scorerID uint, submissionUUID string) (bool, error)
	MarkCompleted(ctx context.Context, workflowID uint, at time.Time) error
	MarkGradingCompleted(ctx context.Context, workflowID uint, at time.Time) error
	MarkCancelled(ctx context.Context, workflowID uint, at time.Time) error
}

type peerRepository struct {
	db *gorm.DB
}

// NewPeerRepository instantiates the repository.
func NewPeerRepository(db *gorm.DB) PeerRepository {
	return &peerRepository{db: db}
}

func (r *peerRepository) GetOrCreateWorkflow(ctx context.Context, workflow models.PeerWorkflow) (models.PeerWorkflow, error) {
	fetch := func() (models.PeerWorkflow, error) {
		var found models.PeerWorkflow
		err := r.db.WithContext(ctx).
			Where("student_id = ? AND course_id = ? AND item_id = ?", workflow.StudentID, workflow.CourseID, workflow.ItemID).
			First(&found).Error
		return found, err
	}

	if found, err := fetch(); err == nil {
		return found, nil
	} else if err != gorm.ErrRecordNotFound {
		return models.PeerWorkflow{}, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&workflow)
	if result.Error != nil {
		return models.PeerWorkflow{}, result.Error
	}

	return fetch()
}

func (r *peerRepository) GetWorkflowBySubmission(ctx context.Context, submissionUUID string) (models.PeerWorkflow, error) {
	var workflow models.PeerWorkflow
	err := r.db.WithContext(ctx).
		Where("submission_uuid = ?", submissionUUID).
		First(&workflow).Error
	if err != nil {
		return models.PeerWorkflow{}, err
	}

	return workflow, nil
}

func (r *peerRepository) OpenClaim(ctx context.Context, scorerID uint, claimTTL time.Duration) (*models.PeerWorkflowItem, error) {
	var item models.PeerWorkflowItem
	err := r.db.WithContext(ctx).
		Where("scorer_id = ? AND assessment_id IS NULL AND started_at > ?", scorerID, time.Now().Add(-claimTTL)).
		Order("started_at DESC").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

func (r *peerRepository) ClaimTarget(ctx context.Context, scorer models.PeerWorkflow, mustBeGradedBy int, claimTTL time.Duration) (*models.PeerWorkflowItem, error) {
	now := time.Now()
	cutoff := now.Add(-claimTTL)

	var claimed *models.PeerWorkflowItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reviews that count toward scarcity: completed assessments plus claims
		// still inside the TTL. Candidates exclude the grader's own submission
		// and anything they have already been handed.
		query := `
			SELECT pw.id, pw.submission_uuid,
			       (SELECT COUNT(*) FROM peer_workflow_items i
			         WHERE i.submission_uuid = pw.submission_uuid
			           AND (i.assessment_id IS NOT NULL OR i.started_at > ?)) AS review_count
			  FROM peer_workflows pw
			 WHERE pw.course_id = ?
			   AND pw.item_id = ?
			   AND pw.id <> ?
			   AND pw.cancelled_at IS NULL
			   AND NOT EXISTS (SELECT 1 FROM peer_workflow_items i
			                    WHERE i.scorer_id = ? AND i.submission_uuid = pw.submission_uuid)
			   AND (SELECT COUNT(*) FROM peer_workflow_items i
			         WHERE i.submission_uuid = pw.submission_uuid
			           AND (i.assessment_id IS NOT NULL OR i.started_at > ?)) < ?
			 ORDER BY review_count ASC, pw.created_at ASC
			 LIMIT 1`
		if tx.Dialector.Name() == "postgres" {
			query += " FOR UPDATE OF pw SKIP LOCKED"
		}

		var target struct {
			ID             uint
			SubmissionUUID string
		}
		err := tx.Raw(query, cutoff, scorer.CourseID, scorer.ItemID, scorer.ID, scorer.ID, cutoff, mustBeGradedBy).
			Scan(&target).Error
		if err != nil {
			return err
		}
		if target.ID == 0 {
			return gorm.ErrRecordNotFound
		}

		item := models.PeerWorkflowItem{
			ScorerID:       scorer.ID,
			AuthorID:       target.ID,
			SubmissionUUID: target.SubmissionUUID,
			StartedAt:      now,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		claimed = &item
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

func (r *peerRepository) AttachAssessment(ctx context.Context, scorerID uint, submissionUUID string, assessmentID uint) error {
	return r.db.WithContext(ctx).Model(&models.PeerWorkflowItem{}).
		Where("scorer_id = ? AND submission_uuid = ? AND assessment_id IS NULL", scorerID, submissionUUID).
		Update("assessment_id", assessmentID).Error
}

func (r *peerRepository) GradedCount(ctx context.Context, scorerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PeerWorkflowItem{}).
		Where("scorer_id = ? AND assessment_id IS NOT NULL", scorerID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *peerRepository) GradedByCount(ctx context.Context, submissionUUID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PeerWorkflowItem{}).
		Where("submission_uuid = ? AND assessment_id IS NOT NULL", submissionUUID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *peerRepository) HasGraded(ctx context.Context, scorerID uint, submissionUUID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PeerWorkflowItem{}).
		Where("scorer_id = ? AND submission_uuid = ? AND assessment_id IS NOT NULL", scorerID, submissionUUID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *peerRepository) MarkCompleted(ctx context.Context, workflowID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PeerWorkflow{}).
		Where("id = ? AND completed_at IS NULL", workflowID).
		Update("completed_at", at).Error
}

func (r *peerRepository) MarkGradingCompleted(ctx context.Context, workflowID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PeerWorkflow{}).
		Where("id = ? AND grading_completed_at IS NULL", workflowID).
		Update("grading_completed_at", at).Error
}

func (r *peerRepository) MarkCancelled(ctx context.Context, workflowID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PeerWorkflow{}).
		Where("id = ? AND cancelled_at IS NULL", workflowID).
		Update("cancelled_at", at).Error
}
