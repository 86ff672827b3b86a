package handler

import (
	consultationapp "github.com/consulta/backend/internal/application/consultation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConsultationHandler handles consultation endpoints
type ConsultationHandler struct {
	BaseHandler
	billingService *consultationapp.BillingService
}

// NewConsultationHandler creates a new ConsultationHandler
func NewConsultationHandler(billingService *consultationapp.BillingService) *ConsultationHandler {
	return &ConsultationHandler{billingService: billingService}
}

// RegisterRoutes registers consultation routes
func (h *ConsultationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	consultations := rg.Group("/consultations")
	{
		consultations.POST("", h.Perform)
		consultations.GET("", h.List)
		consultations.GET("/:id", h.Get)
	}

	rg.POST("/admin/consultations/:id/refund", h.Refund)
}

// Perform prices, charges and executes a consultation for the authenticated
// user
func (h *ConsultationHandler) Perform(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	var req consultationapp.PerformConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	consultation, err := h.billingService.Perform(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, consultation)
}

// Get returns one of the authenticated user's consultations
func (h *ConsultationHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consultation ID format")
		return
	}

	consultation, err := h.billingService.Get(c.Request.Context(), userID, consultationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, consultation)
}

// List lists the authenticated user's consultations
func (h *ConsultationHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	var filter consultationapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	list, err := h.billingService.List(c.Request.Context(), userID, &filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, list.Consultations, list.Total, list.Page, list.PageSize)
}

// Refund returns a consultation's debit to the user's ledger
func (h *ConsultationHandler) Refund(c *gin.Context) {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consultation ID format")
		return
	}

	var req consultationapp.RefundConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	consultation, err := h.billingService.Refund(c.Request.Context(), consultationID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, consultation)
}
