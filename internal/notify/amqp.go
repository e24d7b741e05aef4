package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/metrics"
)

// EventJobCompleted is the type of the AMQP completion event.
const EventJobCompleted = "job.completed"

// Publisher is the subset of the RabbitMQ client the AMQP notifier needs.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// CompletionEvent is the AMQP message body.
type CompletionEvent struct {
	Type string          `json:"type"`
	Job  domain.Snapshot `json:"job"`
}

// AMQP publishes completion snapshots to a message broker.
type AMQP struct {
	publisher Publisher
	target    string
	logger    *slog.Logger
}

// NewAMQP wraps publisher. target names the exchange in logs and errors.
func NewAMQP(publisher Publisher, target string, logger *slog.Logger) *AMQP {
	return &AMQP{
		publisher: publisher,
		target:    target,
		logger:    logger,
	}
}

func (a *AMQP) Notify(ctx context.Context, snapshot domain.Snapshot) error {
	body, err := json.Marshal(CompletionEvent{Type: EventJobCompleted, Job: snapshot})
	if err != nil {
		return fmt.Errorf("failed to marshal completion event: %w", err)
	}

	if err := a.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		metrics.NotificationsTotal.WithLabelValues(SinkAMQP, metrics.NotifyFailed).Inc()
		return &DeliveryError{Target: a.target, Err: err}
	}

	metrics.NotificationsTotal.WithLabelValues(SinkAMQP, metrics.NotifyDelivered).Inc()
	a.logger.Info("Completion event published",
		slog.String("job_id", snapshot.JobID),
		slog.String("target", a.target),
	)
	return nil
}
