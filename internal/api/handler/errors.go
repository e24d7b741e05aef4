package handler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/job-dispatcher/internal/api/dto"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
)

// Client-facing messages
const (
	MsgInvalidJSON         = "Invalid JSON format"
	MsgInvalidQuery        = "Invalid query parameters"
	MsgJobNotFound         = "Job not found"
	MsgJobAlreadyRunning   = "Job is already running"
	MsgJobAlreadyFinished  = "Job has already finished"
	MsgServiceShuttingDown = "Service is shutting down"
)

// bindingMessages maps "<Field>.<tag>" failures of dto.CreateJobRequest to
// the messages clients already know.
var bindingMessages = map[string]string{
	"TaskName.required": "Task name is a required",
	"TaskName.min":      "Task name should have a minimum length 3",
	"TaskName.max":      "Task name should have a maximum length of 150",
	"Priority.required": "Priority is required",
	"Priority.oneof":    "Priority must be low, medium, or high",
	"Payload.required":  "Payload is required",
}

// bindingMessage translates a ShouldBindJSON error into a single message.
// Anything that is not a validation failure is a malformed body.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return MsgInvalidJSON
	}

	first := verrs[0]
	if msg, ok := bindingMessages[first.Field()+"."+first.Tag()]; ok {
		return msg
	}
	return first.Error()
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: message})
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// hidden behind fallback.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case domain.IsValidation(err):
		abortWithError(c, http.StatusBadRequest, domain.ValidationMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		abortWithError(c, http.StatusNotFound, MsgJobNotFound)
	case errors.Is(err, domain.ErrAlreadyRunning):
		abortWithError(c, http.StatusConflict, MsgJobAlreadyRunning)
	case errors.Is(err, domain.ErrAlreadyFinished):
		abortWithError(c, http.StatusConflict, MsgJobAlreadyFinished)
	case errors.Is(err, domain.ErrConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEngineStopped):
		abortWithError(c, http.StatusServiceUnavailable, MsgServiceShuttingDown)
	default:
		// the request logger reports c.Errors
		_ = c.Error(errors.Wrap(err, fallback))
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}
