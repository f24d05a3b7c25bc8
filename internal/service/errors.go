package service

import "errors"

// Caller errors: invalid input or requests against missing/terminal records.
// These are surfaced verbatim and never retried.
var (
	// ErrSubmissionNotFound indicates the submission UUID resolves to nothing.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrWorkflowNotFound indicates no workflow exists for the submission.
	ErrWorkflowNotFound = errors.New("assessment workflow not found")
	// ErrWorkflowExists indicates a duplicate workflow creation. Callers that
	// tolerate at-least-once submission signals ignore it.
	ErrWorkflowExists = errors.New("assessment workflow already exists")
	// ErrWorkflowTerminal rejects status changes on done or cancelled workflows.
	ErrWorkflowTerminal = errors.New("assessment workflow is in a terminal status")
	// ErrSelfAssessmentExists rejects a second self-assessment of a submission.
	ErrSelfAssessmentExists = errors.New("self assessment already exists")
	// ErrNotSubmissionOwner rejects a self-assessment by anyone but the owner.
	ErrNotSubmissionOwner = errors.New("scorer does not own the submission")
	// ErrNoClaimedSubmission rejects a peer assessment without an open claim.
	ErrNoClaimedSubmission = errors.New("no claimed submission to assess")
	// ErrUnknownStep rejects workflow creation with an unsupported step name.
	ErrUnknownStep = errors.New("unknown workflow step")
)

// Contention errors: bounded retries were exhausted. Callers should degrade
// gracefully and try again later.
var (
	// ErrPeerAssessmentWorkflow indicates the peer claim transaction kept
	// aborting under contention.
	ErrPeerAssessmentWorkflow = errors.New("peer assessment temporarily unavailable")
	// ErrWorkflowConflict indicates the status compare-and-set kept losing races.
	ErrWorkflowConflict = errors.New("workflow update conflicted, try again")
)
