package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketsync/backend/internal/domain/ingest"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := middleware.GetRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// ErrorWithCode sends an error response, deriving the status from the code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleSyncError converts errors from the sync domain to HTTP responses
func (h *BaseHandler) HandleSyncError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *ingest.Error
	if errors.As(err, &domainErr) {
		code := dto.ErrCodeInternal
		switch domainErr.Kind {
		case ingest.ErrorKindValidation:
			code = dto.ErrCodeValidation
		case ingest.ErrorKindDataIntegrity:
			code = dto.ErrCodeConflict
		case ingest.ErrorKindCredential:
			code = dto.ErrCodeCredential
		case ingest.ErrorKindTransientStorage:
			code = dto.ErrCodeUpstreamUnavailable
		}
		h.ErrorWithCode(c, code, domainErr.Message)
		return
	}

	switch {
	case errors.Is(err, ingest.ErrCredentialAlreadyActive):
		h.Conflict(c, err.Error())
	case errors.Is(err, ingest.ErrCredentialNotBootstrapped),
		errors.Is(err, ingest.ErrCredentialFailed),
		errors.Is(err, ingest.ErrCredentialRefreshInFlight):
		h.ErrorWithCode(c, dto.ErrCodeCredential, err.Error())
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
