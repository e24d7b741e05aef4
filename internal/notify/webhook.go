package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/metrics"
)

const maxResponseBody = 1024

// WebhookConfig holds webhook delivery settings
type WebhookConfig struct {
	URL          string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is outbound requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Webhook POSTs completion snapshots as JSON to a fixed URL.
type Webhook struct {
	url     string
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewWebhook builds a webhook notifier. An empty URL is allowed; Notify then
// returns ErrNoDestination without any network call.
func NewWebhook(cfg WebhookConfig, logger *slog.Logger) *Webhook {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.Logger = logger.With(slog.String("component", "webhook"))
	// Hand back the last response instead of a generic "giving up" error so
	// status and body can be reported.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Webhook{
		url:     cfg.URL,
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// Notify delivers snapshot and waits for the final attempt.
func (w *Webhook) Notify(ctx context.Context, snapshot domain.Snapshot) error {
	if w.url == "" {
		metrics.NotificationsTotal.WithLabelValues(SinkWebhook, metrics.NotifySkipped).Inc()
		return ErrNoDestination
	}

	err := w.deliver(ctx, snapshot)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(SinkWebhook, metrics.NotifyFailed).Inc()
		return err
	}

	metrics.NotificationsTotal.WithLabelValues(SinkWebhook, metrics.NotifyDelivered).Inc()
	return nil
}

func (w *Webhook) deliver(ctx context.Context, snapshot domain.Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return &DeliveryError{Target: w.url, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Job-ID", snapshot.JobID)

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Target: w.url, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			Target:     w.url,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	w.logger.Info("Webhook delivered",
		slog.String("job_id", snapshot.JobID),
		slog.String("target", w.url),
		slog.Int("status_code", resp.StatusCode),
		slog.String("response", string(respBody)),
	)

	return nil
}
