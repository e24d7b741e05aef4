package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Task name bounds, counted in characters after trimming.
const (
	MinTaskNameLength = 3
	MaxTaskNameLength = 150
)

// Job is the persisted unit of work.
type Job struct {
	ID          string     `db:"id" json:"id"`
	TaskName    string     `db:"task_name" json:"task_name"`
	Priority    Priority   `db:"priority" json:"priority"`
	Status      Status     `db:"status" json:"status"`
	Payload     Payload    `db:"payload" json:"payload"`
	Error       string     `db:"error_message" json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// NewJob validates the caller's fields and returns a pending job with a fresh
// time-ordered id.
func NewJob(taskName string, priority Priority, payload Payload, now time.Time) (*Job, error) {
	name := strings.TrimSpace(taskName)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return nil, NewValidationError("Task name is a required")
	case n < MinTaskNameLength:
		return nil, NewValidationError("Task name should have a minimum length 3")
	case n > MaxTaskNameLength:
		return nil, NewValidationError("Task name should have a maximum length of 150")
	}

	if priority == "" {
		return nil, NewValidationError("Priority is required")
	}
	if !priority.IsValid() {
		return nil, NewValidationError("Priority must be low, medium, or high")
	}

	if payload.IsNull() {
		return nil, NewValidationError("Payload is required")
	}
	if !payload.Valid() {
		return nil, NewValidationError("Invalid JSON format")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	ts := now.UTC()
	return &Job{
		ID:        id.String(),
		TaskName:  name,
		Priority:  priority,
		Status:    StatusPending,
		Payload:   payload.Clone(),
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

// ParseID rejects ids that are not UUIDs and returns the canonical
// lowercase hyphenated form the store keys jobs by. The urn:uuid:, braced
// and unhyphenated spellings are accepted.
func ParseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidJobID
	}
	return parsed.String(), nil
}

// Snapshot is the immutable view of a finished job handed to notifiers.
type Snapshot struct {
	JobID       string    `json:"jobId"`
	TaskName    string    `json:"taskName"`
	Priority    Priority  `json:"priority"`
	Payload     Payload   `json:"payload"`
	Status      Status    `json:"status"`
	CompletedAt time.Time `json:"completedAt"`
}

// NewSnapshot copies the notification fields out of job.
func NewSnapshot(job *Job) Snapshot {
	snap := Snapshot{
		JobID:    job.ID,
		TaskName: job.TaskName,
		Priority: job.Priority,
		Payload:  job.Payload.Clone(),
		Status:   job.Status,
	}
	if job.CompletedAt != nil {
		snap.CompletedAt = *job.CompletedAt
	} else {
		snap.CompletedAt = job.UpdatedAt
	}
	return snap
}

// StatusEvent announces a status transition to live observers.
type StatusEvent struct {
	JobID     string    `json:"id"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStatusEvent describes job's current status.
func NewStatusEvent(job *Job) StatusEvent {
	return StatusEvent{
		JobID:     job.ID,
		Status:    job.Status,
		Error:     job.Error,
		UpdatedAt: job.UpdatedAt,
	}
}

// StatusCounts is the dashboard aggregate.
type StatusCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Add records n jobs in status s. Unknown statuses only count toward Total.
func (c *StatusCounts) Add(s Status, n int64) {
	c.Total += n
	switch s {
	case StatusPending:
		c.Pending += n
	case StatusRunning:
		c.Running += n
	case StatusCompleted:
		c.Completed += n
	case StatusFailed:
		c.Failed += n
	}
}
