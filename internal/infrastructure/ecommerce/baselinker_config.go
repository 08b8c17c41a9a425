package ecommerce

import "errors"

// BaselinkerConfig holds configuration for the BaseLinker connector API
type BaselinkerConfig struct {
	// Token is the long-lived API token sent in the X-BLToken header.
	Token string
	// InventoryID selects the BaseLinker inventory products are read from.
	InventoryID string
	// APIBaseURL is the connector endpoint.
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// BaselinkerProductionAPIURL is the production connector endpoint
const BaselinkerProductionAPIURL = "https://api.baselinker.com/connector.php"

// Errors for BaseLinker configuration
var (
	ErrBaselinkerConfigMissingToken       = errors.New("baselinker: API token is required")
	ErrBaselinkerConfigMissingInventoryID = errors.New("baselinker: inventory ID is required")
)

// NewBaselinkerConfig creates a new BaseLinker configuration with defaults
func NewBaselinkerConfig(token, inventoryID string) *BaselinkerConfig {
	return &BaselinkerConfig{
		Token:          token,
		InventoryID:    inventoryID,
		APIBaseURL:     BaselinkerProductionAPIURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the BaseLinker configuration
func (c *BaselinkerConfig) Validate() error {
	if c.Token == "" {
		return ErrBaselinkerConfigMissingToken
	}
	if c.InventoryID == "" {
		return ErrBaselinkerConfigMissingInventoryID
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = BaselinkerProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
