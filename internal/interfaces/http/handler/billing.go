package handler

import (
	billingapp "github.com/consulta/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// BillingHandler handles plan, subscription and renewal endpoints
type BillingHandler struct {
	BaseHandler
	subscriptionService *billingapp.SubscriptionService
	renewalService      *billingapp.RenewalService
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(
	subscriptionService *billingapp.SubscriptionService,
	renewalService *billingapp.RenewalService,
) *BillingHandler {
	return &BillingHandler{
		subscriptionService: subscriptionService,
		renewalService:      renewalService,
	}
}

// RenewalResponse represents the outcome of an on-demand renewal
type RenewalResponse struct {
	Renewed bool `json:"renewed"`
}

// RegisterRoutes registers billing routes
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	plans := rg.Group("/plans")
	{
		plans.GET("", h.ListPlans)
		plans.GET("/:code", h.GetPlan)
	}

	subscriptions := rg.Group("/subscriptions")
	{
		subscriptions.GET("", h.ListSubscriptions)
		subscriptions.GET("/active", h.GetActiveSubscription)
	}

	rg.POST("/renewals", h.Renew)

	admin := rg.Group("/admin/plans")
	{
		admin.POST("", h.CreatePlan)
		admin.DELETE("/:code", h.DeactivatePlan)
	}
}

// ListPlans lists active subscription plans
func (h *BillingHandler) ListPlans(c *gin.Context) {
	plans, err := h.subscriptionService.ListPlans(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, plans)
}

// GetPlan returns a single plan by code
func (h *BillingHandler) GetPlan(c *gin.Context) {
	plan, err := h.subscriptionService.GetPlan(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, plan)
}

// ListSubscriptions lists the authenticated user's subscriptions
func (h *BillingHandler) ListSubscriptions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	subscriptions, err := h.subscriptionService.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscriptions)
}

// GetActiveSubscription returns the authenticated user's active subscription
func (h *BillingHandler) GetActiveSubscription(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	subscription, err := h.subscriptionService.GetActiveSubscription(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscription)
}

// Renew triggers an on-demand renewal charge for the authenticated user
func (h *BillingHandler) Renew(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	if err := h.renewalService.Renew(c.Request.Context(), userID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, RenewalResponse{Renewed: true})
}

// CreatePlan adds a subscription plan
func (h *BillingHandler) CreatePlan(c *gin.Context) {
	var req billingapp.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plan, err := h.subscriptionService.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, plan)
}

// DeactivatePlan retires a plan from sale
func (h *BillingHandler) DeactivatePlan(c *gin.Context) {
	plan, err := h.subscriptionService.DeactivatePlan(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, plan)
}
