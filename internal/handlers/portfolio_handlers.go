package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/epeers/allocator/internal/models"
	"github.com/epeers/allocator/internal/services"
	"github.com/gin-gonic/gin"
)

// PortfolioHandler handles portfolio endpoints. Every route is scoped to the
// authenticated owner.
type PortfolioHandler struct {
	portfolioSvc *services.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(portfolioSvc *services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioSvc: portfolioSvc,
	}
}

// List handles GET /api/portfolios
// @Summary List portfolios
// @Description Portfolios of the caller, newest first
// @Tags portfolios
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.PortfolioListResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/portfolios [get]
func (h *PortfolioHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	portfolios, err := h.portfolioSvc.ListPortfolios(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PortfolioListResponse{Portfolios: portfolios})
}

// Create handles POST /api/portfolios
// @Summary Create a portfolio
// @Description Prices every symbol, sizes the initial positions and stores the portfolio
// @Tags portfolios
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreatePortfolioRequest true "Portfolio"
// @Success 201 {object} models.PortfolioDetailResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse "Unknown symbol"
// @Failure 502 {object} models.ErrorResponse
// @Router /api/portfolios [post]
func (h *PortfolioHandler) Create(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req models.CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if fields := blankCreateFields(&req); len(fields) > 0 {
		invalidFields(c, fields)
		return
	}

	portfolio, err := h.portfolioSvc.CreatePortfolio(c.Request.Context(), id.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.PortfolioDetailResponse{Portfolio: *portfolio})
}

// Get handles GET /api/portfolios/:id
// @Summary Get a portfolio
// @Tags portfolios
// @Produce json
// @Security BearerAuth
// @Param id path string true "Portfolio ID"
// @Success 200 {object} models.PortfolioDetailResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/portfolios/{id} [get]
func (h *PortfolioHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	portfolio, err := h.portfolioSvc.GetPortfolio(c.Request.Context(), c.Param("id"), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PortfolioDetailResponse{Portfolio: *portfolio})
}

// UpdateItem handles PATCH /api/portfolios/:id/items/:itemId
// @Summary Update a line item
// @Description Overwrites currentQuantity and/or tolerance. A null tolerance clears it.
// @Tags portfolios
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Portfolio ID"
// @Param itemId path string true "Item ID"
// @Param request body models.UpdateItemRequest true "Fields to overwrite"
// @Success 200 {object} models.ItemResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/portfolios/{id}/items/{itemId} [patch]
func (h *PortfolioHandler) UpdateItem(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req models.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if v := req.Tolerance.Value; req.Tolerance.Set && v != nil && !(*v > 0) {
		invalidFields(c, map[string]string{"tolerance": "gt=0"})
		return
	}

	upd := models.ItemUpdate{CurrentQuantity: req.CurrentQuantity, Tolerance: req.Tolerance}
	item, err := h.portfolioSvc.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), id.UserID, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ItemResponse{Item: *item})
}

// Refresh handles POST /api/portfolios/:id/refresh
// @Summary Refresh prices and compute drift
// @Description Fetches a live quote for every item and reports current weights against targets. Nothing is stored.
// @Tags portfolios
// @Produce json
// @Security BearerAuth
// @Param id path string true "Portfolio ID"
// @Success 200 {object} models.RefreshResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/portfolios/{id}/refresh [post]
func (h *PortfolioHandler) Refresh(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	ctx, wc := services.NewWarningContext(c.Request.Context())
	report, err := h.portfolioSvc.RefreshPortfolio(ctx, c.Param("id"), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RefreshResponse{Report: *report, Warnings: wc.GetWarnings()})
}

// blankCreateFields catches strings that pass struct validation but are empty
// once trimmed.
func blankCreateFields(req *models.CreatePortfolioRequest) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "required"
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Symbol) == "" {
			fields[fmt.Sprintf("items[%d].symbol", i)] = "required"
		}
	}
	return fields
}
