package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ora-go-api/internal/models"
)

func workflowFixture(submissionUUID string) models.AssessmentWorkflow {
	return models.AssessmentWorkflow{
		SubmissionUUID:  submissionUUID,
		CourseID:        "course-1",
		ItemID:          "item-1",
		Status:          models.StatusPeer,
		StatusChangedAt: time.Now(),
		Steps: []models.AssessmentWorkflowStep{
			{Name: "peer", Position: 0},
			{Name: "self", Position: 1},
		},
	}
}

func TestWorkflowRepositoryCreateEnforcesOnePerSubmission(t *testing.T) {
	db := setupRepoTestDB(t, &models.AssessmentWorkflow{}, &models.AssessmentWorkflowStep{}, &models.AssessmentWorkflowCancellation{})
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	first := workflowFixture("sub-a")
	require.NoError(t, repo.Create(ctx, &first))
	require.NotZero(t, first.ID)

	duplicate := workflowFixture("sub-a")
	require.ErrorIs(t, repo.Create(ctx, &duplicate), ErrDuplicateWorkflow)

	other := workflowFixture("sub-b")
	require.NoError(t, repo.Create(ctx, &other))
}

func TestWorkflowRepositoryGetLoadsStepsInOrder(t *testing.T) {
	db := setupRepoTestDB(t, &models.AssessmentWorkflow{}, &models.AssessmentWorkflowStep{}, &models.AssessmentWorkflowCancellation{})
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	workflow := models.AssessmentWorkflow{
		SubmissionUUID:  "sub-a",
		CourseID:        "course-1",
		ItemID:          "item-1",
		Status:          models.StatusSelf,
		StatusChangedAt: time.Now(),
		Steps: []models.AssessmentWorkflowStep{
			{Name: "self", Position: 1},
			{Name: "peer", Position: 0},
		},
	}
	require.NoError(t, repo.Create(ctx, &workflow))

	fetched, err := repo.GetBySubmissionUUID(ctx, "sub-a")
	require.NoError(t, err)
	require.Equal(t, []string{"peer", "self"}, fetched.StepNames())
}

func TestWorkflowRepositoryCompareAndSetStatus(t *testing.T) {
	db := setupRepoTestDB(t, &models.AssessmentWorkflow{}, &models.AssessmentWorkflowStep{}, &models.AssessmentWorkflowCancellation{})
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	workflow := workflowFixture("sub-a")
	require.NoError(t, repo.Create(ctx, &workflow))

	// Stale expectation loses.
	updated, err := repo.CompareAndSetStatus(ctx, workflow.ID, models.StatusSelf, models.StatusDone, nil, nil)
	require.NoError(t, err)
	require.False(t, updated)

	earned := 4.5
	possible := 9
	updated, err = repo.CompareAndSetStatus(ctx, workflow.ID, models.StatusPeer, models.StatusDone, &earned, &possible)
	require.NoError(t, err)
	require.True(t, updated)

	fetched, err := repo.GetBySubmissionUUID(ctx, "sub-a")
	require.NoError(t, err)
	require.Equal(t, models.StatusDone, fetched.Status)
	require.NotNil(t, fetched.PointsEarned)
	require.InDelta(t, 4.5, *fetched.PointsEarned, 1e-9)
	require.NotNil(t, fetched.PointsPossible)
	require.Equal(t, 9, *fetched.PointsPossible)
}

func TestWorkflowRepositorySaveStepAndCancellation(t *testing.T) {
	db := setupRepoTestDB(t, &models.AssessmentWorkflow{}, &models.AssessmentWorkflowStep{}, &models.AssessmentWorkflowCancellation{})
	repo := NewWorkflowRepository(db)
	ctx := context.Background()

	workflow := workflowFixture("sub-a")
	require.NoError(t, repo.Create(ctx, &workflow))

	now := time.Now()
	step := workflow.Steps[0]
	step.SubmitterCompletedAt = &now
	require.NoError(t, repo.SaveStep(ctx, &step))

	fetched, err := repo.GetBySubmissionUUID(ctx, "sub-a")
	require.NoError(t, err)
	require.NotNil(t, fetched.Steps[0].SubmitterCompletedAt)
	require.Nil(t, fetched.Steps[0].AssessmentCompletedAt)
	require.Nil(t, fetched.Steps[1].SubmitterCompletedAt)

	require.NoError(t, repo.CreateCancellation(ctx, &models.AssessmentWorkflowCancellation{
		WorkflowID:  workflow.ID,
		CancelledBy: "staff-1",
		Comments:    "academic integrity review",
	}))

	fetched, err = repo.GetBySubmissionUUID(ctx, "sub-a")
	require.NoError(t, err)
	require.Len(t, fetched.Cancellations, 1)
	require.Equal(t, "staff-1", fetched.Cancellations[0].CancelledBy)
}
