package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/services"
)

type SyncHandler struct {
	log  *logger.Logger
	sync services.SyncService
	jobs services.JobService
}

func NewSyncHandler(log *logger.Logger, syncService services.SyncService, jobs services.JobService) *SyncHandler {
	return &SyncHandler{
		log:  log.With("handler", "SyncHandler"),
		sync: syncService,
		jobs: jobs,
	}
}

type syncRequest struct {
	Force bool `json:"force"`
}

// GET /api/sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	RespondOK(c, gin.H{"supabase_connected": h.sync.RemoteConnected()})
}

// POST /api/sync/pull/:slug
// ?async=true wraps the pull in a tracked job and returns its handle.
func (h *SyncHandler) Pull(c *gin.Context) {
	h.runSync(c, domain.JobTypeSyncPull, func(ctx context.Context, slug string, force bool) services.SyncResult {
		return h.sync.Pull(ctx, slug, force)
	})
}

// POST /api/sync/push/:slug
func (h *SyncHandler) Push(c *gin.Context) {
	h.runSync(c, domain.JobTypeSyncPush, func(ctx context.Context, slug string, force bool) services.SyncResult {
		return h.sync.Push(ctx, slug, force)
	})
}

func (h *SyncHandler) runSync(c *gin.Context, jobType string, op func(context.Context, string, bool) services.SyncResult) {
	if !h.sync.RemoteConnected() {
		RespondError(c, http.StatusServiceUnavailable, "supabase_not_connected", nil)
		return
	}
	slug := c.Param("slug")

	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	if isAsync(c) {
		job, err := h.jobs.CreateAndRun(c.Request.Context(), jobType, slug, 0, func(jobID string) (interface{}, error) {
			result := op(context.Background(), slug, req.Force)
			if !result.Success {
				return result, errSyncFailed(result)
			}
			return result, nil
		})
		if err != nil {
			RespondAppError(c, "create_sync_job_failed", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job": job})
		return
	}

	result := op(c.Request.Context(), slug, req.Force)
	if !result.Success {
		h.log.Error("Sync failed", "type", jobType, "slug", slug, "message", result.Message)
		status := http.StatusInternalServerError
		if result.NotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, result)
		return
	}
	RespondOK(c, result)
}

// POST /api/sync/pull-all  (also mounted as /api/sync/init)
func (h *SyncHandler) PullAll(c *gin.Context) {
	if !h.sync.RemoteConnected() {
		RespondError(c, http.StatusServiceUnavailable, "supabase_not_connected", nil)
		return
	}

	if isAsync(c) {
		job, err := h.jobs.CreateAndRun(c.Request.Context(), domain.JobTypeSyncPullAll, "", 0, func(jobID string) (interface{}, error) {
			return h.sync.PullAll(context.Background()), nil
		})
		if err != nil {
			RespondAppError(c, "create_sync_job_failed", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job": job})
		return
	}

	result := h.sync.PullAll(c.Request.Context())
	if !result.Success {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	RespondOK(c, result)
}

func isAsync(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	return v
}

type syncError struct{ result services.SyncResult }

func (e syncError) Error() string { return e.result.Message }

func errSyncFailed(result services.SyncResult) error { return syncError{result: result} }
