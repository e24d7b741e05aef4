package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/testutil"
)

func newSQLiteStorage(t *testing.T) *Storage {
	t.Helper()
	return NewStorage(testutil.NewSQLiteDB(t), testutil.DiscardLogger())
}

func mustCreate(t *testing.T, s *Storage, name string, priority domain.Priority) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(name, priority, domain.Payload(`{"name": "`+name+`"}`), time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func TestSQLite_CreateAndGet(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()

	payload := domain.Payload(`{ "nested": {"list": [1, 2.50, "x"]},  "k" : null }`)
	job, err := domain.NewJob("resize-image", domain.PriorityMedium, payload, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "resize-image", got.TaskName)
	assert.Equal(t, domain.PriorityMedium, got.Priority)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, string(payload), string(got.Payload))
	assert.WithinDuration(t, job.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	_, err = s.GetJobByID(ctx, "0195a1b2-0000-7000-8000-000000000000")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLite_ClaimAndFinish(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()
	job := mustCreate(t, s, "send-email", domain.PriorityHigh)

	claimed, err := s.ClaimJob(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, claimed.Status)
	require.NotNil(t, claimed.StartedAt)

	_, err = s.ClaimJob(ctx, job.ID, time.Now())
	assert.True(t, errors.Is(err, domain.ErrAlreadyRunning), "got %v", err)
	assert.False(t, errors.Is(err, domain.ErrAlreadyFinished), "got %v", err)

	finished, err := s.FinishJob(ctx, job.ID, domain.StatusCompleted, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, finished.Status)
	require.NotNil(t, finished.CompletedAt)
	assert.Equal(t, string(job.Payload), string(finished.Payload))

	_, err = s.ClaimJob(ctx, job.ID, time.Now())
	assert.True(t, errors.Is(err, domain.ErrAlreadyFinished), "got %v", err)
	assert.False(t, errors.Is(err, domain.ErrAlreadyRunning), "got %v", err)

	_, err = s.FinishJob(ctx, job.ID, domain.StatusFailed, "late", time.Now())
	assert.True(t, errors.Is(err, domain.ErrNotRunning), "got %v", err)

	_, err = s.ClaimJob(ctx, "0195a1b2-0000-7000-8000-000000000000", time.Now())
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestSQLite_ConcurrentClaimHasOneWinner(t *testing.T) {
	s := newSQLiteStorage(t)
	job := mustCreate(t, s, "contended-job", domain.PriorityLow)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ClaimJob(context.Background(), job.ID, time.Now())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, callers-1, conflicts)
}

func TestSQLite_FailRunningJobs(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()

	running := mustCreate(t, s, "orphaned-job", domain.PriorityLow)
	pending := mustCreate(t, s, "waiting-job", domain.PriorityLow)
	_, err := s.ClaimJob(ctx, running.ID, time.Now())
	require.NoError(t, err)

	n, err := s.FailRunningJobs(ctx, "interrupted by restart", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetJobByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "interrupted by restart", got.Error)

	got, err = s.GetJobByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestSQLite_ListAndCount(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()

	var created []*domain.Job
	for i := 0; i < 5; i++ {
		created = append(created, mustCreate(t, s, fmt.Sprintf("report-%d", i), domain.PriorityLow))
	}
	created = append(created, mustCreate(t, s, "Send-Email", domain.PriorityHigh))
	created = append(created, mustCreate(t, s, "promo 50% off", domain.PriorityMedium))
	created = append(created, mustCreate(t, s, "promo 500 off", domain.PriorityMedium))

	_, err := s.ClaimJob(ctx, created[0].ID, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name          string
		filter        JobFilter
		expectedIDs   []string
		expectedTotal int64
	}{
		{
			name:          "newest first with limit",
			filter:        JobFilter{Limit: 3},
			expectedIDs:   []string{created[7].ID, created[6].ID, created[5].ID},
			expectedTotal: 8,
		},
		{
			name:          "offset",
			filter:        JobFilter{Limit: 3, Offset: 6},
			expectedIDs:   []string{created[1].ID, created[0].ID},
			expectedTotal: 8,
		},
		{
			name:          "priority",
			filter:        JobFilter{Priority: domain.PriorityHigh},
			expectedIDs:   []string{created[5].ID},
			expectedTotal: 1,
		},
		{
			name:          "status",
			filter:        JobFilter{Status: domain.StatusRunning},
			expectedIDs:   []string{created[0].ID},
			expectedTotal: 1,
		},
		{
			name:          "case-insensitive search",
			filter:        JobFilter{Search: "email"},
			expectedIDs:   []string{created[5].ID},
			expectedTotal: 1,
		},
		{
			name:          "percent is literal",
			filter:        JobFilter{Search: "50%"},
			expectedIDs:   []string{created[6].ID},
			expectedTotal: 1,
		},
		{
			name:          "combined filters",
			filter:        JobFilter{Priority: domain.PriorityLow, Status: domain.StatusPending, Search: "report"},
			expectedIDs:   []string{created[4].ID, created[3].ID, created[2].ID, created[1].ID},
			expectedTotal: 4,
		},
		{
			name:          "no match",
			filter:        JobFilter{Search: "nothing-here"},
			expectedIDs:   []string{},
			expectedTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(jobs))
			for _, j := range jobs {
				ids = append(ids, j.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)

			total, err := s.CountJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedTotal, total)
		})
	}

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Status]int64{
		domain.StatusPending: 7,
		domain.StatusRunning: 1,
	}, counts)
}
