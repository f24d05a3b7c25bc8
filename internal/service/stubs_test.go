package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/ora-go-api/internal/dto"
	"github.com/noah-isme/ora-go-api/internal/events"
	"github.com/noah-isme/ora-go-api/internal/models"
	"github.com/noah-isme/ora-go-api/internal/repository"
)

type memorySubmissionRepo struct {
	items       map[uint]models.StudentItem
	submissions map[string]models.Submission
	nextItemID  uint
	nextSubID   uint
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{
		items:       make(map[uint]models.StudentItem),
		submissions: make(map[string]models.Submission),
		nextItemID:  1,
		nextSubID:   1,
	}
}

func (m *memorySubmissionRepo) GetOrCreateStudentItem(_ context.Context, item models.StudentItem) (models.StudentItem, error) {
	for _, existing := range m.items {
		if existing.StudentID == item.StudentID && existing.CourseID == item.CourseID && existing.ItemID == item.ItemID {
			return existing, nil
		}
	}

	item.ID = m.nextItemID
	m.items[item.ID] = item
	m.nextItemID++
	return item, nil
}

func (m *memorySubmissionRepo) MaxAttempt(_ context.Context, studentItemID uint) (int, error) {
	max := 0
	for _, submission := range m.submissions {
		if submission.StudentItemID == studentItemID && submission.Attempt > max {
			max = submission.Attempt
		}
	}
	return max, nil
}

func (m *memorySubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	submission.ID = m.nextSubID
	submission.CreatedAt = time.Now()
	m.nextSubID++
	m.submissions[submission.UUID] = *submission
	return nil
}

func (m *memorySubmissionRepo) GetByUUID(_ context.Context, submissionUUID string) (models.Submission, error) {
	submission, ok := m.submissions[submissionUUID]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	submission.StudentItem = m.items[submission.StudentItemID]
	return submission, nil
}

func (m *memorySubmissionRepo) ListByStudentItem(_ context.Context, studentItemID uint) ([]models.Submission, error) {
	var results []models.Submission
	for _, submission := range m.submissions {
		if submission.StudentItemID == studentItemID {
			results = append(results, submission)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Attempt > results[j].Attempt })
	return results, nil
}

type memoryAssessmentRepo struct {
	assessments []models.Assessment
	nextID      uint
}

func newMemoryAssessmentRepo() *memoryAssessmentRepo {
	return &memoryAssessmentRepo{nextID: 1}
}

func (m *memoryAssessmentRepo) Create(_ context.Context, assessment *models.Assessment) error {
	assessment.ID = m.nextID
	assessment.CreatedAt = time.Now()
	m.nextID++
	m.assessments = append(m.assessments, *assessment)
	return nil
}

func (m *memoryAssessmentRepo) matches(assessment models.Assessment, filter repository.AssessmentFilter) bool {
	if filter.ScoreType != nil && assessment.ScoreType != *filter.ScoreType {
		return false
	}
	if !filter.IncludeCancelled && assessment.Cancelled {
		return false
	}
	if filter.MustBeGradedBy != nil && assessment.MustBeGradedBy != *filter.MustBeGradedBy {
		return false
	}
	return true
}

func (m *memoryAssessmentRepo) ListBySubmission(_ context.Context, submissionUUID string, filter repository.AssessmentFilter) ([]models.Assessment, error) {
	var results []models.Assessment
	// Newest first, matching the store ordering.
	for i := len(m.assessments) - 1; i >= 0; i-- {
		assessment := m.assessments[i]
		if assessment.SubmissionUUID != submissionUUID {
			continue
		}
		if m.matches(assessment, filter) {
			results = append(results, assessment)
		}
	}
	return results, nil
}

func (m *memoryAssessmentRepo) CountBySubmission(ctx context.Context, submissionUUID string, filter repository.AssessmentFilter) (int64, error) {
	results, err := m.ListBySubmission(ctx, submissionUUID, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(results)), nil
}

func (m *memoryAssessmentRepo) Cancel(_ context.Context, id uint) error {
	for i := range m.assessments {
		if m.assessments[i].ID == id {
			m.assessments[i].Cancelled = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type memoryRubricRepo struct {
	byHash       map[string]models.Rubric
	nextRubricID uint
	nextRowID    uint
}

func newMemoryRubricRepo() *memoryRubricRepo {
	return &memoryRubricRepo{
		byHash:       make(map[string]models.Rubric),
		nextRubricID: 1,
		nextRowID:    1,
	}
}

func (m *memoryRubricRepo) GetOrCreate(_ context.Context, rubric models.Rubric) (models.Rubric, error) {
	hash := rubric.ComputeContentHash()
	if existing, ok := m.byHash[hash]; ok {
		return existing, nil
	}

	rubric.ID = m.nextRubricID
	rubric.ContentHash = hash
	m.nextRubricID++
	for i := range rubric.Criteria {
		rubric.Criteria[i].ID = m.nextRowID
		rubric.Criteria[i].RubricID = rubric.ID
		m.nextRowID++
		for j := range rubric.Criteria[i].Options {
			rubric.Criteria[i].Options[j].ID = m.nextRowID
			rubric.Criteria[i].Options[j].CriterionID = rubric.Criteria[i].ID
			m.nextRowID++
		}
	}

	m.byHash[hash] = rubric
	return rubric, nil
}

func (m *memoryRubricRepo) GetByID(_ context.Context, id uint) (models.Rubric, error) {
	for _, rubric := range m.byHash {
		if rubric.ID == id {
			return rubric, nil
		}
	}
	return models.Rubric{}, gorm.ErrRecordNotFound
}

func (m *memoryRubricRepo) GetByHash(_ context.Context, hash string) (models.Rubric, error) {
	rubric, ok := m.byHash[hash]
	if !ok {
		return models.Rubric{}, gorm.ErrRecordNotFound
	}
	return rubric, nil
}

type memoryPeerRepo struct {
	workflows      map[uint]models.PeerWorkflow
	items          []models.PeerWorkflowItem
	nextWorkflowID uint
	nextItemID     uint
	// claimErrs simulates claim transaction aborts: each non-nil entry fails one
	// ClaimTarget call before the real logic runs.
	claimErrs []error
}

func newMemoryPeerRepo() *memoryPeerRepo {
	return &memoryPeerRepo{
		workflows:      make(map[uint]models.PeerWorkflow),
		nextWorkflowID: 1,
		nextItemID:     1,
	}
}

func (m *memoryPeerRepo) GetOrCreateWorkflow(_ context.Context, workflow models.PeerWorkflow) (models.PeerWorkflow, error) {
	for _, existing := range m.workflows {
		if existing.StudentID == workflow.StudentID && existing.CourseID == workflow.CourseID && existing.ItemID == workflow.ItemID {
			return existing, nil
		}
	}

	workflow.ID = m.nextWorkflowID
	workflow.CreatedAt = time.Now()
	m.workflows[workflow.ID] = workflow
	m.nextWorkflowID++
	return workflow, nil
}

func (m *memoryPeerRepo) GetWorkflowBySubmission(_ context.Context, submissionUUID string) (models.PeerWorkflow, error) {
	for _, workflow := range m.workflows {
		if workflow.SubmissionUUID == submissionUUID {
			return workflow, nil
		}
	}
	return models.PeerWorkflow{}, gorm.ErrRecordNotFound
}

func (m *memoryPeerRepo) OpenClaim(_ context.Context, scorerID uint, claimTTL time.Duration) (*models.PeerWorkflowItem, error) {
	cutoff := time.Now().Add(-claimTTL)
	for i := len(m.items) - 1; i >= 0; i-- {
		item := m.items[i]
		if item.ScorerID == scorerID && item.AssessmentID == nil && item.StartedAt.After(cutoff) {
			return &item, nil
		}
	}
	return nil, nil
}

func (m *memoryPeerRepo) reviewCount(submissionUUID string, cutoff time.Time) int {
	count := 0
	for _, item := range m.items {
		if item.SubmissionUUID != submissionUUID {
			continue
		}
		if item.AssessmentID != nil || item.StartedAt.After(cutoff) {
			count++
		}
	}
	return count
}

func (m *memoryPeerRepo) ClaimTarget(_ context.Context, scorer models.PeerWorkflow, mustBeGradedBy int, claimTTL time.Duration) (*models.PeerWorkflowItem, error) {
	if len(m.claimErrs) > 0 {
		err := m.claimErrs[0]
		m.claimErrs = m.claimErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	cutoff := now.Add(-claimTTL)

	var candidates []models.PeerWorkflow
	for _, workflow := range m.workflows {
		if workflow.CourseID != scorer.CourseID || workflow.ItemID != scorer.ItemID {
			continue
		}
		if workflow.ID == scorer.ID || workflow.CancelledAt != nil {
			continue
		}
		alreadyServed := false
		for _, item := range m.items {
			if item.ScorerID == scorer.ID && item.SubmissionUUID == workflow.SubmissionUUID {
				alreadyServed = true
				break
			}
		}
		if alreadyServed {
			continue
		}
		if m.reviewCount(workflow.SubmissionUUID, cutoff) >= mustBeGradedBy {
			continue
		}
		candidates = append(candidates, workflow)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci := m.reviewCount(candidates[i].SubmissionUUID, cutoff)
		cj := m.reviewCount(candidates[j].SubmissionUUID, cutoff)
		if ci != cj {
			return ci < cj
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) ||
			(candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) && candidates[i].ID < candidates[j].ID)
	})

	target := candidates[0]
	item := models.PeerWorkflowItem{
		ID:             m.nextItemID,
		ScorerID:       scorer.ID,
		AuthorID:       target.ID,
		SubmissionUUID: target.SubmissionUUID,
		StartedAt:      now,
	}
	m.nextItemID++
	m.items = append(m.items, item)
	return &item, nil
}

func (m *memoryPeerRepo) AttachAssessment(_ context.Context, scorerID uint, submissionUUID string, assessmentID uint) error {
	for i := range m.items {
		if m.items[i].ScorerID == scorerID && m.items[i].SubmissionUUID == submissionUUID && m.items[i].AssessmentID == nil {
			m.items[i].AssessmentID = &assessmentID
			return nil
		}
	}
	return nil
}

func (m *memoryPeerRepo) GradedCount(_ context.Context, scorerID uint) (int64, error) {
	var count int64
	for _, item := range m.items {
		if item.ScorerID == scorerID && item.AssessmentID != nil {
			count++
		}
	}
	return count, nil
}

func (m *memoryPeerRepo) GradedByCount(_ context.Context, submissionUUID string) (int64, error) {
	var count int64
	for _, item := range m.items {
		if item.SubmissionUUID == submissionUUID && item.AssessmentID != nil {
			count++
		}
	}
	return count, nil
}

func (m *memoryPeerRepo) HasGraded(_ context.Context, scorerID uint, submissionUUID string) (bool, error) {
	for _, item := range m.items {
		if item.ScorerID == scorerID && item.SubmissionUUID == submissionUUID && item.AssessmentID != nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryPeerRepo) MarkCompleted(_ context.Context, workflowID uint, at time.Time) error {
	workflow, ok := m.workflows[workflowID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if workflow.CompletedAt == nil {
		workflow.CompletedAt = &at
		m.workflows[workflowID] = workflow
	}
	return nil
}

func (m *memoryPeerRepo) MarkGradingCompleted(_ context.Context, workflowID uint, at time.Time) error {
	workflow, ok := m.workflows[workflowID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if workflow.GradingCompletedAt == nil {
		workflow.GradingCompletedAt = &at
		m.workflows[workflowID] = workflow
	}
	return nil
}

func (m *memoryPeerRepo) MarkCancelled(_ context.Context, workflowID uint, at time.Time) error {
	workflow, ok := m.workflows[workflowID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if workflow.CancelledAt == nil {
		workflow.CancelledAt = &at
		m.workflows[workflowID] = workflow
	}
	return nil
}

type memoryWorkflowRepo struct {
	workflows map[uint]models.AssessmentWorkflow
	nextID    uint
	// failCAS makes the next n CompareAndSetStatus calls report a lost race.
	failCAS int
}

func newMemoryWorkflowRepo() *memoryWorkflowRepo {
	return &memoryWorkflowRepo{
		workflows: make(map[uint]models.AssessmentWorkflow),
		nextID:    1,
	}
}

func (m *memoryWorkflowRepo) Create(_ context.Context, workflow *models.AssessmentWorkflow) error {
	for _, existing := range m.workflows {
		if existing.SubmissionUUID == workflow.SubmissionUUID {
			return repository.ErrDuplicateWorkflow
		}
	}

	workflow.ID = m.nextID
	workflow.CreatedAt = time.Now()
	for i := range workflow.Steps {
		workflow.Steps[i].ID = uint(i + 1)
		workflow.Steps[i].WorkflowID = workflow.ID
	}
	m.workflows[workflow.ID] = cloneWorkflow(*workflow)
	m.nextID++
	return nil
}

func (m *memoryWorkflowRepo) GetBySubmissionUUID(_ context.Context, submissionUUID string) (models.AssessmentWorkflow, error) {
	for _, workflow := range m.workflows {
		if workflow.SubmissionUUID == submissionUUID {
			return cloneWorkflow(workflow), nil
		}
	}
	return models.AssessmentWorkflow{}, gorm.ErrRecordNotFound
}

func (m *memoryWorkflowRepo) CompareAndSetStatus(_ context.Context, workflowID uint, expected, next string, earned *float64, possible *int) (bool, error) {
	if m.failCAS > 0 {
		m.failCAS--
		return false, nil
	}

	workflow, ok := m.workflows[workflowID]
	if !ok || workflow.Status != expected {
		return false, nil
	}

	workflow.Status = next
	workflow.StatusChangedAt = time.Now()
	if earned != nil {
		workflow.PointsEarned = earned
	}
	if possible != nil {
		workflow.PointsPossible = possible
	}
	m.workflows[workflowID] = workflow
	return true, nil
}

func (m *memoryWorkflowRepo) SaveStep(_ context.Context, step *models.AssessmentWorkflowStep) error {
	workflow, ok := m.workflows[step.WorkflowID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range workflow.Steps {
		if workflow.Steps[i].ID == step.ID {
			workflow.Steps[i].SubmitterCompletedAt = step.SubmitterCompletedAt
			workflow.Steps[i].AssessmentCompletedAt = step.AssessmentCompletedAt
		}
	}
	m.workflows[step.WorkflowID] = workflow
	return nil
}

func (m *memoryWorkflowRepo) CreateCancellation(_ context.Context, cancellation *models.AssessmentWorkflowCancellation) error {
	workflow, ok := m.workflows[cancellation.WorkflowID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	workflow.Cancellations = append(workflow.Cancellations, *cancellation)
	m.workflows[cancellation.WorkflowID] = workflow
	return nil
}

func cloneWorkflow(workflow models.AssessmentWorkflow) models.AssessmentWorkflow {
	steps := make([]models.AssessmentWorkflowStep, len(workflow.Steps))
	copy(steps, workflow.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })
	workflow.Steps = steps

	cancellations := make([]models.AssessmentWorkflowCancellation, len(workflow.Cancellations))
	copy(cancellations, workflow.Cancellations)
	workflow.Cancellations = cancellations
	return workflow
}

// stubWorkflows satisfies WorkflowService for tests that only care about the
// calls made into it.
type stubWorkflows struct {
	created   []string
	updated   []string
	createErr error
}

func (s *stubWorkflows) Create(_ context.Context, submissionUUID string, _ []string, _, _ string) (dto.WorkflowResponse, error) {
	s.created = append(s.created, submissionUUID)
	if s.createErr != nil {
		return dto.WorkflowResponse{}, s.createErr
	}
	return dto.WorkflowResponse{SubmissionUUID: submissionUUID}, nil
}

func (s *stubWorkflows) Update(_ context.Context, submissionUUID string, _ dto.WorkflowRequirements) (dto.WorkflowResponse, error) {
	s.updated = append(s.updated, submissionUUID)
	return dto.WorkflowResponse{SubmissionUUID: submissionUUID}, nil
}

func (s *stubWorkflows) GetInfo(_ context.Context, submissionUUID string, _ dto.WorkflowRequirements) (dto.WorkflowInfoResponse, error) {
	return dto.WorkflowInfoResponse{SubmissionUUID: submissionUUID}, nil
}

func (s *stubWorkflows) Cancel(context.Context, string, dto.WorkflowCancelRequest) error {
	return nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	submissions []events.SubmissionCreated
	assessments []events.AssessmentCreated
	transitions []events.WorkflowStatusChanged
	scores      []events.ScoreReleased
}

func (p *recordingPublisher) SubmissionCreated(_ context.Context, event events.SubmissionCreated) {
	p.submissions = append(p.submissions, event)
}

func (p *recordingPublisher) AssessmentCreated(_ context.Context, event events.AssessmentCreated) {
	p.assessments = append(p.assessments, event)
}

func (p *recordingPublisher) WorkflowStatusChanged(_ context.Context, event events.WorkflowStatusChanged) {
	p.transitions = append(p.transitions, event)
}

func (p *recordingPublisher) ScoreReleased(_ context.Context, event events.ScoreReleased) {
	p.scores = append(p.scores, event)
}
