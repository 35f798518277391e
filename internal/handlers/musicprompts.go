package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/services"
)

type MusicPromptHandler struct {
	log       *logger.Logger
	universes services.UniverseService
}

func NewMusicPromptHandler(log *logger.Logger, universes services.UniverseService) *MusicPromptHandler {
	return &MusicPromptHandler{
		log:       log.With("handler", "MusicPromptHandler"),
		universes: universes,
	}
}

// GET /api/universes/:slug/music-prompts
func (h *MusicPromptHandler) List(c *gin.Context) {
	prompts, err := h.universes.ListMusicPrompts(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondAppError(c, "list_music_prompts_failed", err)
		return
	}
	RespondOK(c, gin.H{"music_prompts": prompts})
}

// GET /api/universes/:slug/music-prompts/:language
func (h *MusicPromptHandler) Get(c *gin.Context) {
	mp, err := h.universes.GetMusicPrompt(c.Request.Context(), c.Param("slug"), c.Param("language"))
	if err != nil {
		RespondAppError(c, "load_music_prompt_failed", err)
		return
	}
	RespondOK(c, gin.H{"music_prompt": mp})
}

// POST /api/universes/:slug/music-prompts
func (h *MusicPromptHandler) Create(c *gin.Context) {
	var body struct {
		Language string `json:"language" binding:"required"`
		Prompt   string `json:"prompt" binding:"required"`
		Lyrics   string `json:"lyrics"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	mp := &domain.MusicPrompt{
		Language: body.Language,
		Prompt:   body.Prompt,
		Lyrics:   body.Lyrics,
	}
	if err := h.universes.CreateMusicPrompt(c.Request.Context(), c.Param("slug"), mp); err != nil {
		RespondAppError(c, "create_music_prompt_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"music_prompt": mp})
}

// PATCH /api/universes/:slug/music-prompts/:language
func (h *MusicPromptHandler) Update(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	slug, language := c.Param("slug"), c.Param("language")
	if err := h.universes.UpdateMusicPrompt(c.Request.Context(), slug, language, updates); err != nil {
		RespondAppError(c, "update_music_prompt_failed", err)
		return
	}
	RespondOK(c, gin.H{"slug": slug, "language": language})
}

// DELETE /api/universes/:slug/music-prompts/:language
func (h *MusicPromptHandler) Delete(c *gin.Context) {
	slug, language := c.Param("slug"), c.Param("language")
	if err := h.universes.DeleteMusicPrompt(c.Request.Context(), slug, language); err != nil {
		RespondAppError(c, "delete_music_prompt_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": language})
}
