package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ora-go-api/internal/dto"
)

func newSubmissionServiceForTest(submissions *memorySubmissionRepo, peers *memoryPeerRepo, workflows *stubWorkflows, publisher *recordingPublisher) SubmissionService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewSubmissionService(submissions, peers, workflows, publisher, validate, zerolog.Nop())
}

func submissionPayload(studentID string) dto.SubmissionCreateRequest {
	return dto.SubmissionCreateRequest{
		StudentID: studentID,
		CourseID:  "course-1",
		ItemID:    "item-1",
		Answer:    json.RawMessage(`{"text":"my essay"}`),
		Steps:     []string{"peer", "self"},
	}
}

func TestSubmissionCreateFirstAttempt(t *testing.T) {
	submissions := newMemorySubmissionRepo()
	peers := newMemoryPeerRepo()
	workflows := &stubWorkflows{}
	publisher := &recordingPublisher{}
	svc := newSubmissionServiceForTest(submissions, peers, workflows, publisher)

	response, err := svc.Create(context.Background(), submissionPayload("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, response.UUID)
	require.Equal(t, 1, response.Attempt)
	require.Equal(t, "alice", response.StudentID)

	require.Equal(t, []string{response.UUID}, workflows.created)
	require.Len(t, publisher.submissions, 1)
	require.Equal(t, response.UUID, publisher.submissions[0].SubmissionUUID)

	// The peer step was configured, so the submission enters the candidate pool.
	peerWorkflow, err := peers.GetWorkflowBySubmission(context.Background(), response.UUID)
	require.NoError(t, err)
	require.Equal(t, "alice", peerWorkflow.StudentID)
}

func TestSubmissionCreateIncrementsAttempt(t *testing.T) {
	submissions := newMemorySubmissionRepo()
	svc := newSubmissionServiceForTest(submissions, newMemoryPeerRepo(), &stubWorkflows{}, &recordingPublisher{})

	first, err := svc.Create(context.Background(), submissionPayload("alice"))
	require.NoError(t, err)
	require.Equal(t, 1, first.Attempt)

	second, err := svc.Create(context.Background(), submissionPayload("alice"))
	require.NoError(t, err)
	require.Equal(t, 2, second.Attempt)
	require.NotEqual(t, first.UUID, second.UUID)
}

func TestSubmissionCreateHonorsExplicitAttempt(t *testing.T) {
	submissions := newMemorySubmissionRepo()
	svc := newSubmissionServiceForTest(submissions, newMemoryPeerRepo(), &stubWorkflows{}, &recordingPublisher{})

	attempt := 4
	payload := submissionPayload("alice")
	payload.Attempt = &attempt

	response, err := svc.Create(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, 4, response.Attempt)
}

func TestSubmissionCreateToleratesExistingWorkflow(t *testing.T) {
	workflows := &stubWorkflows{createErr: ErrWorkflowExists}
	svc := newSubmissionServiceForTest(newMemorySubmissionRepo(), newMemoryPeerRepo(), workflows, &recordingPublisher{})

	_, err := svc.Create(context.Background(), submissionPayload("alice"))
	require.NoError(t, err, "a duplicate workflow signal is benign")
}

func TestSubmissionCreateSkipsPeerPoolWithoutPeerStep(t *testing.T) {
	peers := newMemoryPeerRepo()
	svc := newSubmissionServiceForTest(newMemorySubmissionRepo(), peers, &stubWorkflows{}, &recordingPublisher{})

	payload := submissionPayload("alice")
	payload.Steps = []string{"self"}

	response, err := svc.Create(context.Background(), payload)
	require.NoError(t, err)

	_, err = peers.GetWorkflowBySubmission(context.Background(), response.UUID)
	require.Error(t, err)
}

func TestSubmissionCreateRejectsInvalidPayload(t *testing.T) {
	svc := newSubmissionServiceForTest(newMemorySubmissionRepo(), newMemoryPeerRepo(), &stubWorkflows{}, &recordingPublisher{})

	payload := submissionPayload("")
	_, err := svc.Create(context.Background(), payload)
	require.Error(t, err)

	payload = submissionPayload("alice")
	payload.Steps = []string{"oral-exam"}
	_, err = svc.Create(context.Background(), payload)
	require.Error(t, err)
}

func TestSubmissionGet(t *testing.T) {
	submissions := newMemorySubmissionRepo()
	svc := newSubmissionServiceForTest(submissions, newMemoryPeerRepo(), &stubWorkflows{}, &recordingPublisher{})

	created, err := svc.Create(context.Background(), submissionPayload("alice"))
	require.NoError(t, err)

	fetched, err := svc.Get(context.Background(), created.UUID)
	require.NoError(t, err)
	require.Equal(t, created.UUID, fetched.UUID)
	require.JSONEq(t, `{"text":"my essay"}`, string(fetched.Answer))

	_, err = svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
