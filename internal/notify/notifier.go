package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
)

// Sink names used in logs and metrics
const (
	SinkWebhook = "webhook"
	SinkAMQP    = "amqp"
)

// ErrNoDestination is returned when a notifier has nowhere to deliver.
var ErrNoDestination = errors.New("no notification destination configured")

// Notifier delivers completion snapshots to an external destination.
type Notifier interface {
	Notify(ctx context.Context, snapshot domain.Snapshot) error
}

// DeliveryError describes a delivery that did not end in success.
type DeliveryError struct {
	Target     string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery to %s failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("delivery to %s failed with status %d: %s", e.Target, e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Multi fans a snapshot out to every notifier. It returns ErrNoDestination
// only when every member had no destination.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, snapshot domain.Snapshot) error {
	var (
		errs    []error
		skipped int
	)

	for _, n := range m {
		err := n.Notify(ctx, snapshot)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoDestination):
			skipped++
		default:
			errs = append(errs, err)
		}
	}

	if skipped == len(m) {
		return ErrNoDestination
	}
	return errors.Join(errs...)
}
