package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/query"
)

type CreateJobRequest struct {
	TaskName string          `json:"task_name" binding:"required,min=3,max=150"`
	Priority string          `json:"priority" binding:"required,oneof=low medium high"`
	Payload  json.RawMessage `json:"payload" binding:"required"`
}

type ListJobsRequest struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Priority string `form:"priority"`
	Status   string `form:"status"`
	Query    string `form:"query"`
}

// Filter converts the query string into a query service filter
func (r ListJobsRequest) Filter() query.Filter {
	return query.Filter{
		Priority: r.Priority,
		Status:   r.Status,
		Query:    r.Query,
		Page:     r.Page,
		Limit:    r.Limit,
	}
}

type ListJobsResponse struct {
	Items      []JobDTO `json:"items"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	Total      int64    `json:"total"`
	TotalPages int      `json:"total_pages"`
}

type JobDTO struct {
	ID          string         `json:"id"`
	TaskName    string         `json:"task_name"`
	Priority    string         `json:"priority"`
	Status      string         `json:"status"`
	Payload     domain.Payload `json:"payload"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	StartedAt   string         `json:"started_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
}

type RunJobResponse struct {
	ID string `json:"id"`
}

type DashboardResponse struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		ID:          job.ID,
		TaskName:    job.TaskName,
		Priority:    string(job.Priority),
		Status:      string(job.Status),
		Payload:     job.Payload,
		Error:       job.Error,
		CreatedAt:   formatTime(job.CreatedAt),
		UpdatedAt:   formatTime(job.UpdatedAt),
		StartedAt:   formatTimePtr(job.StartedAt),
		CompletedAt: formatTimePtr(job.CompletedAt),
	}
}

func NewListJobsResponse(page *query.Page) ListJobsResponse {
	items := make([]JobDTO, len(page.Items))
	for i := range page.Items {
		items[i] = NewJobDTO(&page.Items[i])
	}

	return ListJobsResponse{
		Items:      items,
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
}

func NewDashboardResponse(counts domain.StatusCounts) DashboardResponse {
	return DashboardResponse{
		Total:     counts.Total,
		Pending:   counts.Pending,
		Running:   counts.Running,
		Completed: counts.Completed,
		Failed:    counts.Failed,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
