package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ora-go-api/internal/models"
)

func scoringRubric() models.Rubric {
	return models.Rubric{
		ID: 1,
		Criteria: []models.Criterion{
			{
				ID:       1,
				RubricID: 1,
				Name:     "clarity",
				OrderNum: 0,
				Options: []models.CriterionOption{
					{ID: 1, CriterionID: 1, Name: "poor", OrderNum: 0, Points: 0},
					{ID: 2, CriterionID: 1, Name: "fair", OrderNum: 1, Points: 3},
					{ID: 3, CriterionID: 1, Name: "good", OrderNum: 2, Points: 5},
				},
			},
			{
				ID:       2,
				RubricID: 1,
				Name:     "evidence",
				OrderNum: 1,
				Options: []models.CriterionOption{
					{ID: 4, CriterionID: 2, Name: "weak", OrderNum: 0, Points: 1},
					{ID: 5, CriterionID: 2, Name: "strong", OrderNum: 1, Points: 4},
				},
			},
		},
	}
}

func addPeerAssessment(t *testing.T, repo *memoryAssessmentRepo, submissionUUID string, mustBeGradedBy int, pointsByCriterion map[uint]int) {
	t.Helper()

	rubric := scoringRubric()
	parts := make([]models.AssessmentPart, 0, len(pointsByCriterion))
	for _, criterion := range rubric.Criteria {
		points, ok := pointsByCriterion[criterion.ID]
		if !ok {
			continue
		}
		parts = append(parts, models.AssessmentPart{
			CriterionID: criterion.ID,
			Option:      models.CriterionOption{CriterionID: criterion.ID, Points: points},
		})
	}

	assessment := models.Assessment{
		SubmissionUUID: submissionUUID,
		ScorerID:       "grader",
		RubricID:       rubric.ID,
		ScoreType:      models.ScoreTypePeer,
		MustBeGradedBy: mustBeGradedBy,
		Rubric:         rubric,
		Parts:          parts,
	}
	require.NoError(t, repo.Create(context.Background(), &assessment))
}

func TestMedianScoresOddCountPicksMiddleValue(t *testing.T) {
	repo := newMemoryAssessmentRepo()
	addPeerAssessment(t, repo, "sub-1", 3, map[uint]int{1: 0})
	addPeerAssessment(t, repo, "sub-1", 3, map[uint]int{1: 5})
	addPeerAssessment(t, repo, "sub-1", 3, map[uint]int{1: 3})

	svc := NewScoreService(repo, zerolog.Nop())

	medians, err := svc.MedianScores(context.Background(), "sub-1", 3)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"clarity": 3}, medians)
}

func TestMedianScoresEvenCountStaysFractional(t *testing.T) {
	repo := newMemoryAssessmentRepo()
	addPeerAssessment(t, repo, "sub-1", 2, map[uint]int{1: 0})
	addPeerAssessment(t, repo, "sub-1", 2, map[uint]int{1: 3})

	svc := NewScoreService(repo, zerolog.Nop())

	medians, err := svc.MedianScores(context.Background(), "sub-1", 2)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"clarity": 1.5}, medians)
}

func TestMedianScoresNotReadyReturnsNil(t *testing.T) {
	repo := newMemoryAssessmentRepo()
	addPeerAssessment(t, repo, "sub-1", 3, map[uint]int{1: 5})

	svc := NewScoreService(repo, zerolog.Nop())

	medians, err := svc.MedianScores(context.Background(), "sub-1", 3)
	require.NoError(t, err)
	require.Nil(t, medians, "partial scores must never be released as zero")

	_, _, ok, err := svc.MedianTotal(context.Background(), "sub-1", 3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMedianScoresExcludesStaleConfiguration(t *testing.T) {
	repo := newMemoryAssessmentRepo()
	// Two assessments recorded under an older must_be_graded_by=3 configuration.
	addPeerAssessment(t, repo, "sub-1", 3, map[uint]int{1: 5})
	addPeerAssessment(t, repo, "sub-1", 3, map[uint]int{1: 5})
	// One under the current configuration.
	addPeerAssessment(t, repo, "sub-1", 1, map[uint]int{1: 3})

	svc := NewScoreService(repo, zerolog.Nop())

	medians, err := svc.MedianScores(context.Background(), "sub-1", 1)
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"clarity": 3}, medians, "stale-configuration assessments must not count")
}

func TestMedianTotalSumsCriterionMedians(t *testing.T) {
	repo := newMemoryAssessmentRepo()
	addPeerAssessment(t, repo, "sub-1", 2, map[uint]int{1: 0, 2: 1})
	addPeerAssessment(t, repo, "sub-1", 2, map[uint]int{1: 5, 2: 4})

	svc := NewScoreService(repo, zerolog.Nop())

	total, possible, ok, err := svc.MedianTotal(context.Background(), "sub-1", 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 5.0, total, 1e-9) // 2.5 + 2.5
	require.Equal(t, 9, possible)
}
