package handler

import (
	"time"

	"github.com/attendsync/backend/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
)

// JobRunResponse reports a manual job run
type JobRunResponse struct {
	Job      string              `json:"job"`
	Duration time.Duration       `json:"duration"`
	Status   scheduler.JobStatus `json:"status"`
}

// SchedulerHandler exposes the scheduled jobs
type SchedulerHandler struct {
	BaseHandler
	jobs JobRunner
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(jobs JobRunner) *SchedulerHandler {
	return &SchedulerHandler{jobs: jobs}
}

// ListJobs returns every job with its next and last run
func (h *SchedulerHandler) ListJobs(c *gin.Context) {
	h.Success(c, h.jobs.Jobs())
}

// RunJob runs a job now and waits for it to finish. A job already running
// elsewhere is reported as a conflict.
func (h *SchedulerHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	started := time.Now()

	err := h.jobs.RunJob(c.Request.Context(), name)
	resp := JobRunResponse{Job: name, Duration: time.Since(started)}
	for _, st := range h.jobs.Jobs() {
		if st.Name == name {
			resp.Status = st
			break
		}
	}
	if err != nil {
		h.HandleErrorWithData(c, err, resp)
		return
	}
	h.Success(c, resp)
}
