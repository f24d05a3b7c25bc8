package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/ora-go-api/internal/models"
)

func TestSubmissionRepositoryGetOrCreateStudentItem(t *testing.T) {
	db := setupRepoTestDB(t, &models.StudentItem{}, &models.Submission{})
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	item := models.StudentItem{StudentID: "alice", CourseID: "course-1", ItemID: "item-1"}

	first, err := repo.GetOrCreateStudentItem(ctx, item)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := repo.GetOrCreateStudentItem(ctx, item)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	other, err := repo.GetOrCreateStudentItem(ctx, models.StudentItem{StudentID: "bob", CourseID: "course-1", ItemID: "item-1"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestSubmissionRepositoryMaxAttempt(t *testing.T) {
	db := setupRepoTestDB(t, &models.StudentItem{}, &models.Submission{})
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	item, err := repo.GetOrCreateStudentItem(ctx, models.StudentItem{StudentID: "alice", CourseID: "course-1", ItemID: "item-1"})
	require.NoError(t, err)

	max, err := repo.MaxAttempt(ctx, item.ID)
	require.NoError(t, err)
	require.Zero(t, max, "no submissions yet")

	for attempt := 1; attempt <= 3; attempt++ {
		submission := models.Submission{
			UUID:          "sub-" + string(rune('a'+attempt-1)),
			StudentItemID: item.ID,
			Attempt:       attempt,
			Answer:        datatypes.JSON(`{"text":"draft"}`),
			SubmittedAt:   time.Now(),
		}
		require.NoError(t, repo.Create(ctx, &submission))
	}

	max, err = repo.MaxAttempt(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 3, max)
}

func TestSubmissionRepositoryGetByUUIDLoadsStudentItem(t *testing.T) {
	db := setupRepoTestDB(t, &models.StudentItem{}, &models.Submission{})
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	item, err := repo.GetOrCreateStudentItem(ctx, models.StudentItem{StudentID: "alice", CourseID: "course-1", ItemID: "item-1"})
	require.NoError(t, err)

	submission := models.Submission{
		UUID:          "sub-a",
		StudentItemID: item.ID,
		Attempt:       1,
		Answer:        datatypes.JSON(`{"text":"final"}`),
		SubmittedAt:   time.Now(),
	}
	require.NoError(t, repo.Create(ctx, &submission))

	fetched, err := repo.GetByUUID(ctx, "sub-a")
	require.NoError(t, err)
	require.Equal(t, "alice", fetched.StudentItem.StudentID)
	require.JSONEq(t, `{"text":"final"}`, string(fetched.Answer))

	submissions, err := repo.ListByStudentItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, submissions, 1)
}
