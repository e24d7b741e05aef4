package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/metrics"
)

// Defaults applied by NewEngine for zero config values
const (
	DefaultConcurrency   = 10
	DefaultJobTimeout    = 30 * time.Second
	DefaultNotifyTimeout = 30 * time.Second
	DefaultWriteTimeout  = 10 * time.Second
)

// RecoveredReason is the error recorded on jobs left running by a previous process.
const RecoveredReason = "interrupted by service restart"

// Store is the persistence the engine needs.
type Store interface {
	ClaimJob(ctx context.Context, jobID string, now time.Time) (*domain.Job, error)
	FinishJob(ctx context.Context, jobID string, status domain.Status, errMsg string, now time.Time) (*domain.Job, error)
	FailRunningJobs(ctx context.Context, reason string, now time.Time) (int64, error)
}

// Notifier receives a snapshot of every completed job.
type Notifier interface {
	Notify(ctx context.Context, snapshot domain.Snapshot) error
}

// EventPublisher observes every status transition.
type EventPublisher interface {
	Publish(event domain.StatusEvent)
}

// Config holds engine configuration
type Config struct {
	Logger   *slog.Logger
	Store    Store
	Registry *Registry
	Notifier Notifier
	// Events is optional.
	Events EventPublisher
	// Concurrency bounds how many work units execute at once.
	Concurrency int
	// JobTimeout bounds a single work unit execution.
	JobTimeout time.Duration
	// NotifyTimeout bounds one notification including retries.
	NotifyTimeout time.Duration
	// WriteTimeout bounds the terminal status write.
	WriteTimeout time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Engine claims jobs and runs their work units detached from the caller.
type Engine struct {
	logger        *slog.Logger
	store         Store
	registry      *Registry
	notifier      Notifier
	events        EventPublisher
	jobTimeout    time.Duration
	notifyTimeout time.Duration
	writeTimeout  time.Duration
	now           func() time.Time

	slots chan struct{}
	wg    sync.WaitGroup

	// mu guards stopped; Run holds it for reading across claim and wg.Add so
	// Shutdown never waits on a WaitGroup that is still growing.
	mu      sync.RWMutex
	stopped bool

	// workCtx parents every work unit context; canceled when shutdown gives up waiting.
	workCtx    context.Context
	cancelWork context.CancelFunc
}

// NewEngine creates a new engine instance
func NewEngine(cfg *Config) *Engine {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(DelayWorkUnit{Duration: 3 * time.Second})
	}

	workCtx, cancel := context.WithCancel(context.Background())

	return &Engine{
		logger:        cfg.Logger,
		store:         cfg.Store,
		registry:      registry,
		notifier:      cfg.Notifier,
		events:        cfg.Events,
		jobTimeout:    jobTimeout,
		notifyTimeout: notifyTimeout,
		writeTimeout:  writeTimeout,
		now:           clock,
		slots:         make(chan struct{}, concurrency),
		workCtx:       workCtx,
		cancelWork:    cancel,
	}
}

// Run claims the job and starts its work unit in the background. It returns
// as soon as the claim is recorded; the outcome of the work is reflected only
// in the stored status.
func (e *Engine) Run(ctx context.Context, jobID string) (*domain.Job, error) {
	jobID, err := domain.ParseID(jobID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return nil, domain.ErrEngineStopped
	}

	job, err := e.store.ClaimJob(ctx, jobID, e.now())
	if err != nil {
		metrics.JobClaimsTotal.WithLabelValues(claimResult(err)).Inc()
		return nil, err
	}
	metrics.JobClaimsTotal.WithLabelValues(metrics.ClaimClaimed).Inc()

	e.logger.Info("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("task_name", job.TaskName),
	)
	e.publish(job)

	e.wg.Add(1)
	go e.execute(*job)

	return job, nil
}

// Shutdown stops accepting runs and waits for in-flight executions. If ctx
// expires first, remaining work units are canceled and recorded as failed
// before Shutdown returns ctx's error.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.logger.Info("Stopping execution engine...")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancelWork()
		e.logger.Info("Execution engine stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn("Shutdown deadline reached, interrupting in-flight jobs")
		e.cancelWork()
		<-done
		e.logger.Info("Execution engine stopped")
		return ctx.Err()
	}
}

// Recover marks jobs left running by a previous process as failed.
func (e *Engine) Recover(ctx context.Context) (int64, error) {
	n, err := e.store.FailRunningJobs(ctx, RecoveredReason, e.now())
	if err != nil {
		return 0, err
	}

	metrics.RecoveredJobsTotal.Add(float64(n))
	if n > 0 {
		e.logger.Warn("Marked orphaned running jobs as failed",
			slog.Int64("count", n),
		)
	}
	return n, nil
}

// Wait blocks until every started execution has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) publish(job *domain.Job) {
	if e.events == nil {
		return
	}
	e.events.Publish(domain.NewStatusEvent(job))
}

func claimResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ClaimNotFound
	case errors.Is(err, domain.ErrAlreadyRunning):
		return metrics.ClaimAlreadyRunning
	case errors.Is(err, domain.ErrAlreadyFinished):
		return metrics.ClaimAlreadyFinished
	default:
		return metrics.ClaimError
	}
}
