package handler

import (
	creditapp "github.com/consulta/backend/internal/application/credit"
	"github.com/gin-gonic/gin"
)

// CatalogHandler handles consultation type catalog and quoting endpoints
type CatalogHandler struct {
	BaseHandler
	pricingService *creditapp.PricingService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(pricingService *creditapp.PricingService) *CatalogHandler {
	return &CatalogHandler{pricingService: pricingService}
}

// QuoteRequest represents a request to price a set of consultation codes
type QuoteRequest struct {
	Codes []string `json:"codes" binding:"required,min=1,dive,consultation_code"`
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	types := rg.Group("/consultation-types")
	{
		types.GET("", h.ListTypes)
		types.GET("/:code", h.GetType)
	}

	rg.POST("/consultations/quote", h.Quote)

	admin := rg.Group("/admin/consultation-types")
	{
		admin.POST("", h.CreateType)
		admin.PATCH("/:code", h.UpdateType)
	}
}

// ListTypes lists catalog entries. Inactive entries are included only when
// include_inactive=true.
func (h *CatalogHandler) ListTypes(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	types, err := h.pricingService.ListTypes(c.Request.Context(), includeInactive)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, types)
}

// GetType returns a single catalog entry by code
func (h *CatalogHandler) GetType(c *gin.Context) {
	consultationType, err := h.pricingService.GetType(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, consultationType)
}

// Quote prices a set of consultation codes without performing them
func (h *CatalogHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	quote, err := h.pricingService.Quote(c.Request.Context(), req.Codes)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, quote)
}

// CreateType adds a catalog entry
func (h *CatalogHandler) CreateType(c *gin.Context) {
	var req creditapp.CreateConsultationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	consultationType, err := h.pricingService.CreateType(c.Request.Context(), &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, consultationType)
}

// UpdateType reprices or toggles a catalog entry
func (h *CatalogHandler) UpdateType(c *gin.Context) {
	var req creditapp.UpdateConsultationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	consultationType, err := h.pricingService.UpdateType(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, consultationType)
}
