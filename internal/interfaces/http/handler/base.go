package handler

import (
	"errors"
	"net/http"

	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/interfaces/http/dto"
	"github.com/consulta/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BaseHandler provides common response helpers for all handlers
type BaseHandler struct{}

// getRequestID extracts the request ID set by the RequestID middleware
func getRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// getUserID resolves the authenticated user's ID. The X-User-ID header is a
// development fallback for routes mounted without the auth middleware.
func getUserID(c *gin.Context) (uuid.UUID, error) {
	if s := middleware.GetAuthUserID(c); s != "" {
		return uuid.Parse(s)
	}
	if s := c.GetHeader("X-User-ID"); s != "" {
		return uuid.Parse(s)
	}
	return uuid.Nil, errors.New("missing user identity")
}

// Success sends a 200 response with data
func (h *BaseHandler) Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with data and pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data interface{}, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 response with data
func (h *BaseHandler) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given status and code
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// HandleError maps application errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var insufficientErr *shared.InsufficientBalanceError
	if errors.As(err, &insufficientErr) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeInsufficientBalance),
			dto.ErrCodeInsufficientBalance, insufficientErr.Error())
		return
	}

	var unpriceableErr *shared.UnpriceableError
	if errors.As(err, &unpriceableErr) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeUnpriceable),
			dto.ErrCodeUnpriceable, unpriceableErr.Error())
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// UnprocessableEntity sends a 422 response
func (h *BaseHandler) UnprocessableEntity(c *gin.Context, message string) {
	h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, message)
}

// InternalError sends a 500 response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}
