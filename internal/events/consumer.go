package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ora-go-api/internal/dto"
)

// WorkflowUpdater is the slice of the workflow service the consumer needs: the
// callback point invoked when a background grading collaborator finishes.
type WorkflowUpdater interface {
	Update(ctx context.Context, submissionUUID string, requirements dto.WorkflowRequirements) (dto.WorkflowResponse, error)
}

// Consumer listens for assessment-completed signals from staff tooling and the
// AI grader and triggers the workflow refresh. The signal is a forward-progress
// hint: a missed message is recovered by the next workflow read, which always
// recomputes status from the store.
type Consumer struct {
	conn         *nats.Conn
	subjectBase  string
	workflows    WorkflowUpdater
	logger       zerolog.Logger
	subscription *nats.Subscription
}

// NewConsumer builds the assessment-completed consumer.
func NewConsumer(conn *nats.Conn, subjectBase string, workflows WorkflowUpdater, logger zerolog.Logger) *Consumer {
	return &Consumer{
		conn:        conn,
		subjectBase: subjectBase,
		workflows:   workflows,
		logger:      logger.With().Str("component", "event_consumer").Logger(),
	}
}

// Start subscribes to "<base>.assessment.completed". No-op when no broker is
// configured.
func (c *Consumer) Start(ctx context.Context) error {
	if c.conn == nil {
		c.logger.Info().Msg("no broker configured, assessment-completed consumer disabled")
		return nil
	}

	subject := c.subjectBase + ".assessment.completed"
	subscription, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event AssessmentCompleted
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Warn().Err(err).Str("subject", subject).Msg("failed to decode assessment-completed event")
			return
		}

		if _, err := c.workflows.Update(ctx, event.SubmissionUUID, event.Requirements); err != nil {
			c.logger.Warn().Err(err).
				Str("submission_uuid", event.SubmissionUUID).
				Str("score_type", event.ScoreType).
				Msg("workflow refresh from assessment-completed event failed")
		}
	})
	if err != nil {
		return err
	}

	c.subscription = subscription
	c.logger.Info().Str("subject", subject).Msg("assessment-completed consumer started")
	return nil
}

// Close drains the subscription.
func (c *Consumer) Close() {
	if c.subscription != nil {
		_ = c.subscription.Drain()
	}
}
