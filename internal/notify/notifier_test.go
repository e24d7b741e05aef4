package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		JobID:       "0195a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b",
		TaskName:    "send-email",
		Priority:    domain.PriorityHigh,
		Payload:     domain.Payload(`{"to":"ops@example.com","retries":[1,2]}`),
		Status:      domain.StatusCompleted,
		CompletedAt: time.Date(2025, 3, 1, 10, 0, 3, 0, time.UTC),
	}
}

func fastWebhook(url string, retryMax int) *Webhook {
	return NewWebhook(WebhookConfig{
		URL:          url,
		Timeout:      time.Second,
		RetryMax:     retryMax,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, discardLogger())
}

func TestWebhook_DeliversSnapshot(t *testing.T) {
	var (
		mu       sync.Mutex
		received []byte
		headers  http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		received, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	err := fastWebhook(server.URL, 0).Notify(context.Background(), testSnapshot())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "0195a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b", headers.Get("X-Job-ID"))
	assert.JSONEq(t, `{
		"jobId": "0195a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b",
		"taskName": "send-email",
		"priority": "high",
		"payload": {"to":"ops@example.com","retries":[1,2]},
		"status": "completed",
		"completedAt": "2025-03-01T10:00:03Z"
	}`, string(received))
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := fastWebhook(server.URL, 3).Notify(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestWebhook_GivesUpAfterRetryMax(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	}))
	defer server.Close()

	err := fastWebhook(server.URL, 2).Notify(context.Background(), testSnapshot())
	require.Error(t, err)

	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, server.URL, derr.Target)
	assert.Equal(t, http.StatusInternalServerError, derr.StatusCode)
	assert.Equal(t, "boom", derr.Body)
	assert.Equal(t, int32(3), hits.Load())
}

func TestWebhook_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := fastWebhook(server.URL, 3).Notify(context.Background(), testSnapshot())

	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusBadRequest, derr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWebhook_UnreachableTarget(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := fastWebhook(url, 1).Notify(context.Background(), testSnapshot())

	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, url, derr.Target)
	assert.Error(t, derr.Err)
}

func TestWebhook_NoURL(t *testing.T) {
	err := fastWebhook("", 3).Notify(context.Background(), testSnapshot())
	assert.ErrorIs(t, err, ErrNoDestination)
}

type fakePublisher struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (f *fakePublisher) PublishWithRetry(_ context.Context, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func TestAMQP_PublishesCompletionEvent(t *testing.T) {
	pub := &fakePublisher{}
	n := NewAMQP(pub, "jobs.events", discardLogger())

	require.NoError(t, n.Notify(context.Background(), testSnapshot()))
	require.Len(t, pub.bodies, 1)

	var event struct {
		Type string          `json:"type"`
		Job  json.RawMessage `json:"job"`
	}
	require.NoError(t, json.Unmarshal(pub.bodies[0], &event))
	assert.Equal(t, EventJobCompleted, event.Type)

	expected, err := json.Marshal(testSnapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), string(event.Job))
}

func TestAMQP_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	err := NewAMQP(pub, "jobs.events", discardLogger()).Notify(context.Background(), testSnapshot())

	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "jobs.events", derr.Target)
	assert.Contains(t, err.Error(), "channel closed")
}

type stubNotifier struct {
	err   error
	calls atomic.Int32
}

func (s *stubNotifier) Notify(context.Context, domain.Snapshot) error {
	s.calls.Add(1)
	return s.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		members   []error
		expectErr func(t *testing.T, err error)
	}{
		{
			name:    "all delivered",
			members: []error{nil, nil},
			expectErr: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:    "all skipped",
			members: []error{ErrNoDestination, ErrNoDestination},
			expectErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoDestination)
			},
		},
		{
			name:    "one skipped one delivered",
			members: []error{ErrNoDestination, nil},
			expectErr: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:    "failure is reported",
			members: []error{nil, boom, ErrNoDestination},
			expectErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, boom)
				assert.NotErrorIs(t, err, ErrNoDestination)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				multi Multi
				stubs []*stubNotifier
			)
			for _, e := range tt.members {
				s := &stubNotifier{err: e}
				stubs = append(stubs, s)
				multi = append(multi, s)
			}

			tt.expectErr(t, multi.Notify(context.Background(), testSnapshot()))
			for _, s := range stubs {
				assert.Equal(t, int32(1), s.calls.Load())
			}
		})
	}
}
