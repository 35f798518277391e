package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/services"
)

type JobHandler struct {
	log  *logger.Logger
	jobs services.JobService
}

func NewJobHandler(log *logger.Logger, jobs services.JobService) *JobHandler {
	return &JobHandler{
		log:  log.With("handler", "JobHandler"),
		jobs: jobs,
	}
}

// GET /api/jobs
func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := h.jobs.List(c.Request.Context(), c.Query("univers_slug"), c.Query("status"), limit)
	if err != nil {
		h.log.Error("List jobs failed", "error", err)
		RespondAppError(c, "list_jobs_failed", err)
		return
	}
	RespondOK(c, gin.H{"jobs": jobs, "total": len(jobs)})
}

// GET /api/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAppError(c, "load_job_failed", err)
		return
	}
	if job == nil {
		RespondError(c, http.StatusNotFound, "job_not_found", nil)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// DELETE /api/jobs/cleanup?days=N
func (h *JobHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		RespondError(c, http.StatusBadRequest, "invalid_days", err)
		return
	}
	deleted, err := h.jobs.DeleteStale(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.log.Error("Job cleanup failed", "error", err)
		RespondAppError(c, "job_cleanup_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": deleted})
}
