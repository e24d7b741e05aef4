package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/job-dispatcher/internal/api/dto"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/metrics"
)

// CreateJob handles POST /api/v1/jobs
// Stores a new pending job
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Rejected create request", slog.String("error", err.Error()))
		abortWithError(c, http.StatusBadRequest, bindingMessage(err))
		return
	}

	job, err := domain.NewJob(req.TaskName, domain.Priority(req.Priority), domain.Payload(req.Payload), h.now())
	if err != nil {
		respondError(c, err, "Failed to create job")
		return
	}

	if err := h.store.CreateJob(c.Request.Context(), job); err != nil {
		respondError(c, err, "Failed to create job")
		return
	}
	metrics.JobsCreatedTotal.Inc()

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("task_name", job.TaskName),
		slog.String("priority", string(job.Priority)),
	)

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := domain.ParseID(c.Param("job_id"))
	if err != nil {
		respondError(c, err, "Failed to get job")
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional filters and offset pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Debug("Invalid query parameters", slog.String("error", err.Error()))
		abortWithError(c, http.StatusBadRequest, MsgInvalidQuery)
		return
	}

	page, err := h.querier.List(c.Request.Context(), req.Filter())
	if err != nil {
		respondError(c, err, "Failed to list jobs")
		return
	}

	c.JSON(http.StatusOK, dto.NewListJobsResponse(page))
}

// RunJob handles POST /api/v1/jobs/:job_id/run
// Claims the job and answers before the work unit finishes
func (h *JobHandler) RunJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.runner.Run(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err, "Failed to run job")
		return
	}

	c.JSON(http.StatusAccepted, dto.RunJobResponse{ID: job.ID})
}

// GetDashboard handles GET /api/v1/dashboard
func (h *JobHandler) GetDashboard(c *gin.Context) {
	counts, err := h.querier.Aggregate(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load dashboard")
		return
	}

	c.JSON(http.StatusOK, dto.NewDashboardResponse(counts))
}
