package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/services"
)

type UniverseHandler struct {
	log       *logger.Logger
	universes services.UniverseService
}

func NewUniverseHandler(log *logger.Logger, universes services.UniverseService) *UniverseHandler {
	return &UniverseHandler{
		log:       log.With("handler", "UniverseHandler"),
		universes: universes,
	}
}

// GET /api/universes
func (h *UniverseHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var isPublic *bool
	if raw := c.Query("is_public"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_is_public", err)
			return
		}
		isPublic = &v
	}

	universes, total, err := h.universes.List(c.Request.Context(), offset, limit, isPublic)
	if err != nil {
		h.log.Error("List universes failed", "error", err)
		RespondAppError(c, "list_universes_failed", err)
		return
	}
	RespondOK(c, gin.H{"universes": universes, "total": total})
}

// POST /api/universes
func (h *UniverseHandler) Create(c *gin.Context) {
	var input services.CreateUniverseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	universe, err := h.universes.Create(c.Request.Context(), input)
	if err != nil {
		h.log.Error("Create universe failed", "name", input.Name, "error", err)
		RespondAppError(c, "create_universe_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"universe": universe})
}

// GET /api/universes/:slug
func (h *UniverseHandler) Get(c *gin.Context) {
	view, err := h.universes.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondAppError(c, "load_universe_failed", err)
		return
	}
	RespondOK(c, gin.H{"universe": view})
}

// PATCH /api/universes/:slug
func (h *UniverseHandler) Update(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	universe, err := h.universes.Update(c.Request.Context(), c.Param("slug"), updates)
	if err != nil {
		RespondAppError(c, "update_universe_failed", err)
		return
	}
	RespondOK(c, gin.H{"universe": universe})
}

// PUT /api/universes/:slug/prompts
func (h *UniverseHandler) UpdatePrompts(c *gin.Context) {
	var body struct {
		DefaultImagePrompt string `json:"default_image_prompt"`
		DefaultVideoPrompt string `json:"default_video_prompt"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	slug := c.Param("slug")
	if err := h.universes.UpdatePrompts(c.Request.Context(), slug, body.DefaultImagePrompt, body.DefaultVideoPrompt); err != nil {
		RespondAppError(c, "update_prompts_failed", err)
		return
	}
	RespondOK(c, gin.H{"slug": slug})
}

// PUT /api/universes/:slug/translations
func (h *UniverseHandler) ReplaceTranslations(c *gin.Context) {
	var body struct {
		Translations []domain.UniverseTranslation `json:"translations"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	slug := c.Param("slug")
	if err := h.universes.ReplaceTranslations(c.Request.Context(), slug, body.Translations); err != nil {
		RespondAppError(c, "replace_translations_failed", err)
		return
	}
	RespondOK(c, gin.H{"slug": slug, "count": len(body.Translations)})
}

// DELETE /api/universes/:slug
func (h *UniverseHandler) Delete(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.universes.Delete(c.Request.Context(), slug); err != nil {
		RespondAppError(c, "delete_universe_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": slug})
}
