package handlers

import (
	"net/http"

	"github.com/epeers/allocator/internal/models"
	"github.com/epeers/allocator/internal/services"
	"github.com/gin-gonic/gin"
)

// AssetHandler handles symbol search and live quotes
type AssetHandler struct {
	quoteSvc *services.QuoteService
}

// NewAssetHandler creates a new AssetHandler
func NewAssetHandler(quoteSvc *services.QuoteService) *AssetHandler {
	return &AssetHandler{quoteSvc: quoteSvc}
}

// Search handles GET /api/assets/search
// @Summary Search symbols
// @Tags assets
// @Produce json
// @Security BearerAuth
// @Param q query string true "Free-text query"
// @Success 200 {object} models.SearchAssetsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/assets/search [get]
func (h *AssetHandler) Search(c *gin.Context) {
	var req models.SearchAssetsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	results, err := h.quoteSvc.Search(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SearchAssetsResponse{Results: results})
}

// Quote handles GET /api/assets/quote
// @Summary Live quote
// @Tags assets
// @Produce json
// @Security BearerAuth
// @Param symbol query string true "Provider symbol"
// @Success 200 {object} models.QuoteResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/assets/quote [get]
func (h *AssetHandler) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.quoteSvc.Quote(c.Request.Context(), req.Symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.QuoteResponse{Quote: *quote})
}
