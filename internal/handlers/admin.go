package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/pkg/apierr"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/services"
)

type AdminHandler struct {
	log   *logger.Logger
	admin services.AdminService
}

func NewAdminHandler(log *logger.Logger, admin services.AdminService) *AdminHandler {
	return &AdminHandler{
		log:   log.With("handler", "AdminHandler"),
		admin: admin,
	}
}

// GET /api/admin/cleanup-test-universes
func (h *AdminHandler) ListTestUniverses(c *gin.Context) {
	slugs, err := h.admin.ListTestUniverses(c.Request.Context())
	if err != nil {
		h.log.Error("List test universes failed", "error", err)
		RespondAppError(c, "list_test_universes_failed", err)
		return
	}
	RespondOK(c, gin.H{"test_universes_count": len(slugs), "test_universe_slugs": slugs})
}

// POST /api/admin/cleanup-test-universes?confirm=true&dry_run=false
// Sweeps every test universe. Defaults to a dry run; an actual sweep
// requires confirm=true.
func (h *AdminHandler) CleanupAll(c *gin.Context) {
	confirm := c.Query("confirm") == "true"
	dryRun := c.DefaultQuery("dry_run", "true") == "true"

	if !dryRun && !confirm {
		RespondError(c, http.StatusBadRequest, "confirmation_required", nil)
		return
	}
	if confirm {
		dryRun = false
	}

	report, err := h.admin.CleanupAllTestUniverses(c.Request.Context(), dryRun)
	if err != nil {
		h.log.Error("Test universe sweep failed", "error", err)
		RespondAppError(c, "cleanup_test_universes_failed", err)
		return
	}
	RespondOK(c, gin.H{"report": report})
}

// DELETE /api/admin/cleanup-test-universes/:slug?confirm=true
func (h *AdminHandler) CleanupOne(c *gin.Context) {
	if c.Query("confirm") != "true" {
		RespondError(c, http.StatusBadRequest, "confirmation_required", nil)
		return
	}
	result, err := h.admin.CleanupTestUniverse(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondAppError(c, "cleanup_test_universe_failed", err)
		return
	}
	if len(result.Errors) > 0 {
		RespondAppError(c, "cleanup_incomplete",
			apierr.New(http.StatusInternalServerError, "cleanup_incomplete", errors.New(strings.Join(result.Errors, "; "))))
		return
	}
	RespondOK(c, gin.H{"result": result})
}
