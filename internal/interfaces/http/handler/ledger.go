package handler

import (
	creditapp "github.com/consulta/backend/internal/application/credit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles credit ledger endpoints. Reads are user-facing;
// manual credit/debit and the audit run live under /admin.
type LedgerHandler struct {
	BaseHandler
	ledgerService *creditapp.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *creditapp.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// RegisterRoutes registers ledger routes
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	credits := rg.Group("/credits")
	{
		credits.GET("/balance", h.GetBalance)
		credits.GET("/transactions", h.ListTransactions)
		credits.GET("/transactions/:id", h.GetTransaction)
	}

	admin := rg.Group("/admin/users/:id")
	{
		admin.POST("/credit", h.Credit)
		admin.POST("/debit", h.Debit)
		admin.GET("/audit", h.Audit)
	}
}

// GetBalance returns the authenticated user's current balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balance)
}

// ListTransactions lists the authenticated user's ledger transactions
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Missing user identity")
		return
	}

	var filter creditapp.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	list, err := h.ledgerService.ListTransactions(c.Request.Context(), userID, &filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, list.Transactions, list.Total, list.Page, list.PageSize)
}

// GetTransaction returns a single ledger transaction
func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	transaction, err := h.ledgerService.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, transaction)
}

// Credit appends a manual credit to a user's ledger
func (h *LedgerHandler) Credit(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid user ID format")
		return
	}

	var req creditapp.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	transaction, err := h.ledgerService.Credit(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, transaction)
}

// Debit appends a manual debit to a user's ledger
func (h *LedgerHandler) Debit(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid user ID format")
		return
	}

	var req creditapp.DebitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	transaction, err := h.ledgerService.Debit(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, transaction)
}

// Audit verifies the running-sum consistency of a user's ledger
func (h *LedgerHandler) Audit(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid user ID format")
		return
	}

	audit, err := h.ledgerService.Audit(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, audit)
}
