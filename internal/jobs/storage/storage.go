package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
)

const jobColumns = `id, task_name, priority, status, payload, error_message,
		created_at, updated_at, started_at, completed_at`

// Storage is the job store. Queries are written with ? placeholders and
// rebound for the driver the db was opened with.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// JobFilter narrows ListJobs and CountJobs. Zero values mean "no filter".
type JobFilter struct {
	Priority domain.Priority
	Status   domain.Status
	// Search is a lowercase substring matched against task_name.
	Search string
	Limit  int
	Offset int
}

// CreateJob persists a new job.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := s.db.Rebind(`
		INSERT INTO jobs (
			id, task_name, priority, status, payload, error_message,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.TaskName,
		job.Priority,
		job.Status,
		job.Payload,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID returns domain.ErrNotFound when no job has the id.
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := s.db.Rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`)

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ClaimJob moves a pending job to running in a single conditional update.
// When nothing was updated the current row is read to report why:
// domain.ErrNotFound, domain.ErrAlreadyRunning or domain.ErrAlreadyFinished.
func (s *Storage) ClaimJob(ctx context.Context, jobID string, now time.Time) (*domain.Job, error) {
	query := s.db.Rebind(`
		UPDATE jobs
		SET status = ?,
		    started_at = ?,
		    updated_at = ?
		WHERE id = ?
		  AND status = ?
		RETURNING ` + jobColumns)

	ts := now.UTC()
	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.StatusRunning, ts, ts, jobID, domain.StatusPending)
	if err == nil {
		s.logger.Info("Job claimed successfully",
			slog.String("job_id", jobID),
			slog.String("task_name", job.TaskName),
		)
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	current, err := s.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Failed to claim job - not pending",
		slog.String("job_id", jobID),
		slog.String("status", string(current.Status)),
	)

	switch current.Status {
	case domain.StatusRunning:
		return nil, domain.ErrAlreadyRunning
	case domain.StatusCompleted, domain.StatusFailed:
		return nil, domain.ErrAlreadyFinished
	default:
		return nil, errors.Newf("claim of job %s was not applied (status %s)", jobID, current.Status)
	}
}

// FinishJob records the terminal status of a running job and returns the
// finalized row. Returns domain.ErrNotRunning if the job left running already.
func (s *Storage) FinishJob(ctx context.Context, jobID string, status domain.Status, errMsg string, now time.Time) (*domain.Job, error) {
	if !domain.StatusRunning.CanTransitionTo(status) {
		return nil, fmt.Errorf("invalid terminal status %q", status)
	}

	query := s.db.Rebind(`
		UPDATE jobs
		SET status = ?,
		    error_message = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
		  AND status = ?
		RETURNING ` + jobColumns)

	ts := now.UTC()
	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, status, errMsg, ts, ts, jobID, domain.StatusRunning)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotRunning
		}
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	return &job, nil
}

// FailRunningJobs marks every running job failed with reason. Used at startup
// to settle jobs orphaned by a previous process.
func (s *Storage) FailRunningJobs(ctx context.Context, reason string, now time.Time) (int64, error) {
	query := s.db.Rebind(`
		UPDATE jobs
		SET status = ?,
		    error_message = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE status = ?
	`)

	ts := now.UTC()
	result, err := s.db.ExecContext(ctx, query, domain.StatusFailed, reason, ts, ts, domain.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to fail running jobs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ListJobs returns a page of jobs, newest first.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	where, args := filter.where()

	query := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// CountJobs returns how many jobs match the filter, ignoring Limit and Offset.
func (s *Storage) CountJobs(ctx context.Context, filter JobFilter) (int64, error) {
	where, args := filter.where()

	var total int64
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM jobs`+where), args...); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	return total, nil
}

// CountByStatus returns the number of jobs in each status present in the table.
func (s *Storage) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status `db:"status"`
		Count  int64         `db:"count"`
	}

	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM jobs GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}

	counts := make(map[domain.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (f JobFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, f.Priority)
	}

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}

	if f.Search != "" {
		clauses = append(clauses, `LOWER(task_name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
