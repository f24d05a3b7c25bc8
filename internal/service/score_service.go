package service

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/repository"
)

// ScoreService aggregates assessments into per-criterion and total scores. It
// only reads assessments, never writes them.
type ScoreService interface {
	// MedianScores returns criterion name → median peer points for a submission,
	// or nil when fewer than requiredGradedBy eligible assessments exist yet.
	// Only non-cancelled peer assessments recorded under the current
	// must_be_graded_by configuration are eligible; assessments from an older
	// configuration are excluded. Even-count medians average the two middle
	// values and stay fractional.
	MedianScores(ctx context.Context, submissionUUID string, requiredGradedBy int) (map[string]float64, error)
	// MedianTotal sums the criterion medians. The nil map contract carries over:
	// ok is false when not enough assessments exist.
	MedianTotal(ctx context.Context, submissionUUID string, requiredGradedBy int) (total float64, possible int, ok bool, err error)
}

type scoreService struct {
	assessments repository.AssessmentRepository
	logger      zerolog.Logger
}

// NewScoreService constructs the aggregator.
func NewScoreService(assessments repository.AssessmentRepository, logger zerolog.Logger) ScoreService {
	return &scoreService{
		assessments: assessments,
		logger:      logger.With().Str("component", "score_service").Logger(),
	}
}

func (s *scoreService) eligible(ctx context.Context, submissionUUID string, requiredGradedBy int) ([]models.Assessment, error) {
	scoreType := models.ScoreTypePeer
	filter := repository.AssessmentFilter{
		ScoreType:      &scoreType,
		MustBeGradedBy: &requiredGradedBy,
	}

	assessments, err := s.assessments.ListBySubmission(ctx, submissionUUID, filter)
	if err != nil {
		return nil, err
	}
	if len(assessments) < requiredGradedBy {
		return nil, nil
	}

	return assessments, nil
}

func (s *scoreService) MedianScores(ctx context.Context, submissionUUID string, requiredGradedBy int) (map[string]float64, error) {
	assessments, err := s.eligible(ctx, submissionUUID, requiredGradedBy)
	if err != nil || assessments == nil {
		return nil, err
	}

	pointsByCriterion := make(map[string][]int)
	for _, assessment := range assessments {
		for _, part := range assessment.Parts {
			criterion, ok := assessment.Rubric.CriterionByID(part.CriterionID)
			if !ok {
				s.logger.Warn().
					Uint("assessment_id", assessment.ID).
					Uint("criterion_id", part.CriterionID).
					Msg("assessment part references unknown criterion")
				continue
			}
			pointsByCriterion[criterion.Name] = append(pointsByCriterion[criterion.Name], part.Option.Points)
		}
	}

	medians := make(map[string]float64, len(pointsByCriterion))
	for criterion, points := range pointsByCriterion {
		medians[criterion] = medianPoints(points)
	}

	return medians, nil
}

func (s *scoreService) MedianTotal(ctx context.Context, submissionUUID string, requiredGradedBy int) (float64, int, bool, error) {
	assessments, err := s.eligible(ctx, submissionUUID, requiredGradedBy)
	if err != nil || assessments == nil {
		return 0, 0, false, err
	}

	medians, err := s.MedianScores(ctx, submissionUUID, requiredGradedBy)
	if err != nil || medians == nil {
		return 0, 0, false, err
	}

	total := 0.0
	for _, median := range medians {
		total += median
	}

	return total, assessments[0].Rubric.MaxPoints(), true, nil
}

// medianPoints dampens outlier grades: odd-length lists return the middle
// value, even-length lists the mean of the two middle values (fractional).
func medianPoints(points []int) float64 {
	sorted := make([]int, len(points))
	copy(sorted, points)
	sort.Ints(sorted)

	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}

	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
