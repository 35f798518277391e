package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petitmonde/univers-backend/internal/pkg/logger"
	"github.com/petitmonde/univers-backend/internal/services"
)

type AssetHandler struct {
	log       *logger.Logger
	universes services.UniverseService
}

func NewAssetHandler(log *logger.Logger, universes services.UniverseService) *AssetHandler {
	return &AssetHandler{
		log:       log.With("handler", "AssetHandler"),
		universes: universes,
	}
}

// GET /api/universes/:slug/assets
func (h *AssetHandler) List(c *gin.Context) {
	assets, err := h.universes.ListAssets(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondAppError(c, "list_assets_failed", err)
		return
	}
	RespondOK(c, gin.H{"assets": assets, "total": len(assets)})
}

// POST /api/universes/:slug/assets
func (h *AssetHandler) Create(c *gin.Context) {
	var input services.CreateAssetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	asset, err := h.universes.CreateAsset(c.Request.Context(), c.Param("slug"), input)
	if err != nil {
		h.log.Error("Create asset failed", "slug", c.Param("slug"), "error", err)
		RespondAppError(c, "create_asset_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

// GET /api/universes/:slug/assets/:assetID
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.universes.GetAsset(c.Request.Context(), c.Param("slug"), c.Param("assetID"))
	if err != nil {
		RespondAppError(c, "load_asset_failed", err)
		return
	}
	RespondOK(c, gin.H{"asset": asset})
}

// PATCH /api/universes/:slug/assets/:assetID
func (h *AssetHandler) Update(c *gin.Context) {
	var input services.UpdateAssetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	asset, err := h.universes.UpdateAsset(c.Request.Context(), c.Param("slug"), c.Param("assetID"), input)
	if err != nil {
		h.log.Error("Update asset failed", "slug", c.Param("slug"), "asset_id", c.Param("assetID"), "error", err)
		RespondAppError(c, "update_asset_failed", err)
		return
	}
	RespondOK(c, gin.H{"asset": asset})
}

// DELETE /api/universes/:slug/assets/:assetID
func (h *AssetHandler) Delete(c *gin.Context) {
	if err := h.universes.DeleteAsset(c.Request.Context(), c.Param("slug"), c.Param("assetID")); err != nil {
		RespondAppError(c, "delete_asset_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": c.Param("assetID")})
}
