package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/query"
)

// JobStore persists new jobs and reads single records
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
}

// Runner claims a job and starts it in the background
type Runner interface {
	Run(ctx context.Context, jobID string) (*domain.Job, error)
}

// Querier answers list and dashboard requests
type Querier interface {
	List(ctx context.Context, filter query.Filter) (*query.Page, error)
	Aggregate(ctx context.Context) (domain.StatusCounts, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EventStream upgrades a request into a live status subscription
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Store   JobStore
	Runner  Runner
	Querier Querier
	// Events, Database and Broker are optional
	Events   EventStream
	Database HealthChecker
	Broker   HealthChecker
	// AllowOrigin is the CORS origin; empty means "*"
	AllowOrigin string
	ServiceName string
	Clock       func() time.Time
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	store   JobStore
	runner  Runner
	querier Querier
	now     func() time.Time
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &JobHandler{
		logger:  deps.Logger,
		store:   deps.Store,
		runner:  deps.Runner,
		querier: deps.Querier,
		now:     clock,
	}
}
