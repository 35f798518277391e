package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/domain"
	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/services"
)

type GenerationHandler struct {
	log        *logger.Logger
	generation services.GenerationService
	jobs       services.JobService
}

func NewGenerationHandler(log *logger.Logger, generation services.GenerationService, jobs services.JobService) *GenerationHandler {
	return &GenerationHandler{
		log:        log.With("handler", "GenerationHandler"),
		generation: generation,
		jobs:       jobs,
	}
}

// POST /api/generate/:slug/concepts
// Synchronous: returns concepts plus their translations, without
// touching the database. Apply them with /concepts/apply.
func (h *GenerationHandler) GenerateConcepts(c *gin.Context) {
	var body struct {
		Theme    string `json:"theme" binding:"required"`
		Count    int    `json:"count"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if body.Language == "" {
		body.Language = "fr"
	}

	set, err := h.generation.GenerateConcepts(c.Request.Context(), body.Theme, body.Count, body.Language)
	if err != nil {
		h.log.Error("Concept generation failed", "slug", c.Param("slug"), "error", err)
		RespondAppError(c, "generate_concepts_failed", err)
		return
	}
	RespondOK(c, set)
}

// POST /api/generate/:slug/concepts/apply
func (h *GenerationHandler) ApplyConcepts(c *gin.Context) {
	var set services.ConceptSet
	if err := c.ShouldBindJSON(&set); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	slug := c.Param("slug")
	created, err := h.generation.ApplyConcepts(c.Request.Context(), slug, set)
	if err != nil {
		h.log.Error("Apply concepts failed", "slug", slug, "error", err)
		RespondAppError(c, "apply_concepts_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true, "asset_count": created})
}

// POST /api/generate/:slug/images
func (h *GenerationHandler) GenerateImages(c *gin.Context) {
	h.runGenerationJob(c, domain.JobTypeGenerateImages, func(ctx context.Context, jobID, slug string) (interface{}, error) {
		return h.generation.GenerateAllImages(ctx, jobID, slug)
	})
}

// POST /api/generate/:slug/videos
func (h *GenerationHandler) GenerateVideos(c *gin.Context) {
	h.runGenerationJob(c, domain.JobTypeGenerateVideos, func(ctx context.Context, jobID, slug string) (interface{}, error) {
		return h.generation.GenerateAllVideos(ctx, jobID, slug)
	})
}

// POST /api/generate/:slug/music
func (h *GenerationHandler) GenerateMusic(c *gin.Context) {
	var body struct {
		Languages []string `json:"languages"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	h.runGenerationJob(c, domain.JobTypeGenerateMusic, func(ctx context.Context, jobID, slug string) (interface{}, error) {
		return h.generation.GenerateMusic(ctx, jobID, slug, body.Languages)
	})
}

// POST /api/generate/:slug/all
func (h *GenerationHandler) GenerateAll(c *gin.Context) {
	var body struct {
		Theme          string `json:"theme" binding:"required"`
		ConceptCount   int    `json:"concept_count"`
		GenerateVideos *bool  `json:"generate_videos"`
		GenerateMusic  *bool  `json:"generate_music"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	withVideos := body.GenerateVideos == nil || *body.GenerateVideos
	withMusic := body.GenerateMusic == nil || *body.GenerateMusic

	h.runGenerationJob(c, domain.JobTypeGenerateAll, func(ctx context.Context, jobID, slug string) (interface{}, error) {
		return h.generation.GenerateUniverseContent(ctx, jobID, slug, body.Theme, body.ConceptCount, withVideos, withMusic)
	})
}

// runGenerationJob starts the task as a tracked job and returns its
// handle immediately. The task runs detached from the request context.
func (h *GenerationHandler) runGenerationJob(c *gin.Context, jobType string, task func(ctx context.Context, jobID, slug string) (interface{}, error)) {
	if !h.generation.Available() {
		RespondError(c, http.StatusServiceUnavailable, "generation_unavailable", nil)
		return
	}
	slug := c.Param("slug")

	job, err := h.jobs.CreateAndRun(c.Request.Context(), jobType, slug, 0, func(jobID string) (interface{}, error) {
		return task(context.Background(), jobID, slug)
	})
	if err != nil {
		h.log.Error("Failed to start generation job", "type", jobType, "slug", slug, "error", err)
		RespondAppError(c, "create_generation_job_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}
