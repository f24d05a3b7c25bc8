package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher emits workflow lifecycle events for external collaborators.
// Publishing is best-effort: a failed publish is logged, never propagated,
// because every consumer must stay correct from store state alone.
type Publisher interface {
	SubmissionCreated(ctx context.Context, event SubmissionCreated)
	AssessmentCreated(ctx context.Context, event AssessmentCreated)
	WorkflowStatusChanged(ctx context.Context, event WorkflowStatusChanged)
	ScoreReleased(ctx context.Context, event ScoreReleased)
}

type natsPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewNATSPublisher builds a publisher on a NATS connection. Subjects are
// "<base>.submission.created", "<base>.assessment.created",
// "<base>.workflow.status_changed" and "<base>.score.released".
func NewNATSPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) Publisher {
	return &natsPublisher{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) publish(subject string, payload interface{}) {
	if p.conn == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to encode event")
		return
	}

	if err := p.conn.Publish(p.subjectBase+"."+subject, body); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

func (p *natsPublisher) SubmissionCreated(_ context.Context, event SubmissionCreated) {
	p.publish("submission.created", event)
}

func (p *natsPublisher) AssessmentCreated(_ context.Context, event AssessmentCreated) {
	p.publish("assessment.created", event)
}

func (p *natsPublisher) WorkflowStatusChanged(_ context.Context, event WorkflowStatusChanged) {
	p.publish("workflow.status_changed", event)
}

func (p *natsPublisher) ScoreReleased(_ context.Context, event ScoreReleased) {
	p.publish("score.released", event)
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that discards every event. Used when no
// broker is configured and in tests.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) SubmissionCreated(context.Context, SubmissionCreated)         {}
func (nopPublisher) AssessmentCreated(context.Context, AssessmentCreated)         {}
func (nopPublisher) WorkflowStatusChanged(context.Context, WorkflowStatusChanged) {}
func (nopPublisher) ScoreReleased(context.Context, ScoreReleased)                 {}
