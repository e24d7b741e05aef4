package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/metrics"
	"github.com/cuongbtq/job-dispatcher/internal/notify"
)

// execute runs one claimed job to a terminal status
func (e *Engine) execute(job domain.Job) {
	defer e.wg.Done()

	select {
	case e.slots <- struct{}{}:
	case <-e.workCtx.Done():
		e.fail(job, &domain.WorkUnitFailure{JobID: job.ID, Err: errors.New("interrupted by shutdown before start")})
		return
	}
	defer func() { <-e.slots }()

	metrics.JobsInFlight.Inc()
	start := time.Now()
	err := e.runWorkUnit(job)
	metrics.JobsInFlight.Dec()
	metrics.JobExecutionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.fail(job, err)
		return
	}
	e.complete(job)
}

// runWorkUnit executes the job's work unit under the job timeout. A unit that
// ignores its context is abandoned when the deadline passes.
func (e *Engine) runWorkUnit(job domain.Job) error {
	ctx, cancel := context.WithTimeout(e.workCtx, e.jobTimeout)
	defer cancel()

	e.logger.Info("Executing job",
		slog.String("job_id", job.ID),
		slog.String("task_name", job.TaskName),
	)

	unit := e.registry.Resolve(job.TaskName)
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("work unit panicked: %v", r)
			}
		}()
		done <- unit.Execute(ctx, job)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		switch {
		case e.workCtx.Err() != nil:
			err = errors.New("interrupted by shutdown")
		case errors.Is(ctxErr, context.DeadlineExceeded):
			err = fmt.Errorf("timed out after %s", e.jobTimeout)
		}
	}

	if err != nil {
		return &domain.WorkUnitFailure{JobID: job.ID, Err: err}
	}
	return nil
}

func (e *Engine) complete(job domain.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	defer cancel()

	finished, err := e.store.FinishJob(ctx, job.ID, domain.StatusCompleted, "", e.now())
	if err != nil {
		e.logger.Error("Failed to update job status to completed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.JobExecutionsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	e.logger.Info("Job completed successfully",
		slog.String("job_id", job.ID),
		slog.String("task_name", job.TaskName),
	)
	e.publish(finished)

	e.notify(domain.NewSnapshot(finished))
}

func (e *Engine) fail(job domain.Job, cause error) {
	e.logger.Error("Job execution failed",
		slog.String("job_id", job.ID),
		slog.String("task_name", job.TaskName),
		slog.String("error", cause.Error()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	defer cancel()

	finished, err := e.store.FinishJob(ctx, job.ID, domain.StatusFailed, cause.Error(), e.now())
	if err != nil {
		e.logger.Error("Failed to update job status to failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.JobExecutionsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	e.publish(finished)
}

// notify delivers the completion snapshot. Failures never touch the job's status.
func (e *Engine) notify(snapshot domain.Snapshot) {
	if e.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
	defer cancel()

	err := e.notifier.Notify(ctx, snapshot)
	switch {
	case err == nil:
	case errors.Is(err, notify.ErrNoDestination):
		e.logger.Warn("Completion notification skipped - no destination configured",
			slog.String("job_id", snapshot.JobID),
		)
	default:
		e.logger.Error("Failed to deliver completion notification",
			slog.String("job_id", snapshot.JobID),
			slog.String("error", err.Error()),
		)
	}
}
