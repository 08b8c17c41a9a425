package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	credentialapp "github.com/marketsync/backend/internal/application/credential"
	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/ingest"
)

// CredentialHandler handles provider credential lifecycle endpoints.
// Token values never leave the service; responses carry state only.
type CredentialHandler struct {
	BaseHandler
	service *credentialapp.Service
}

// NewCredentialHandler creates a new CredentialHandler
func NewCredentialHandler(service *credentialapp.Service) *CredentialHandler {
	return &CredentialHandler{service: service}
}

// BootstrapRequest carries the one-time authorization code
type BootstrapRequest struct {
	AuthCode string `json:"auth_code" binding:"required"`
}

// CredentialStatusResponse represents credential state for one provider
type CredentialStatusResponse struct {
	Provider     string `json:"provider"`
	State        string `json:"state"`
	Bootstrapped bool   `json:"bootstrapped"`
	IssuedAt     string `json:"issued_at"`
	UpdatedAt    string `json:"updated_at"`
}

// GetStatus returns the credential state for a provider
func (h *CredentialHandler) GetStatus(c *gin.Context) {
	provider, ok := h.parseProvider(c)
	if !ok {
		return
	}

	record, err := h.service.Status(c.Request.Context(), provider)
	if err != nil {
		h.HandleSyncError(c, err)
		return
	}
	h.Success(c, toCredentialStatusResponse(record))
}

// Bootstrap exchanges an authorization code for the first token pair
func (h *CredentialHandler) Bootstrap(c *gin.Context) {
	provider, ok := h.parseProvider(c)
	if !ok {
		return
	}

	var req BootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "auth_code is required")
		return
	}

	record, err := h.service.Bootstrap(c.Request.Context(), provider, req.AuthCode)
	if err != nil {
		if errors.Is(err, credentialapp.ErrNoExchanger) {
			h.NotFound(c, "provider does not support token exchange")
			return
		}
		h.HandleSyncError(c, err)
		return
	}
	h.Created(c, toCredentialStatusResponse(record))
}

// Refresh rotates the token pair for a provider
func (h *CredentialHandler) Refresh(c *gin.Context) {
	provider, ok := h.parseProvider(c)
	if !ok {
		return
	}

	record, err := h.service.Refresh(c.Request.Context(), provider)
	if err != nil {
		if errors.Is(err, credentialapp.ErrNoExchanger) {
			h.NotFound(c, "provider does not support token exchange")
			return
		}
		h.HandleSyncError(c, err)
		return
	}
	h.Success(c, toCredentialStatusResponse(record))
}

// RegisterRoutes registers credential routes
func (h *CredentialHandler) RegisterRoutes(rg *gin.RouterGroup) {
	credentials := rg.Group("/credentials")
	{
		credentials.GET("/:provider", h.GetStatus)
		credentials.POST("/:provider/bootstrap", h.Bootstrap)
		credentials.POST("/:provider/refresh", h.Refresh)
	}
}

func (h *CredentialHandler) parseProvider(c *gin.Context) (catalog.ProviderCode, bool) {
	provider := catalog.ProviderCode(strings.ToUpper(c.Param("provider")))
	if !provider.IsValid() {
		h.NotFound(c, "unknown provider")
		return "", false
	}
	return provider, true
}

func toCredentialStatusResponse(record *ingest.CredentialRecord) CredentialStatusResponse {
	return CredentialStatusResponse{
		Provider:     record.Provider.String(),
		State:        record.State.String(),
		Bootstrapped: !record.IsSentinel(),
		IssuedAt:     record.IssuedAt.Format(time.RFC3339),
		UpdatedAt:    record.UpdatedAt.Format(time.RFC3339),
	}
}
