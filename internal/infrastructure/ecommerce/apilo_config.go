package ecommerce

import "errors"

// ApiloConfig holds configuration for the Apilo REST API
type ApiloConfig struct {
	// APIBaseURL is the tenant's Apilo instance, e.g. https://example.apilo.com.
	APIBaseURL string
	// ClientID and ClientSecret authenticate the token endpoint via HTTP
	// Basic auth. Data endpoints use the rotating bearer token instead.
	ClientID     string
	ClientSecret string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for Apilo configuration
var (
	ErrApiloConfigMissingBaseURL      = errors.New("apilo: API base URL is required")
	ErrApiloConfigMissingClientID     = errors.New("apilo: client ID is required")
	ErrApiloConfigMissingClientSecret = errors.New("apilo: client secret is required")
)

// NewApiloConfig creates a new Apilo configuration with defaults
func NewApiloConfig(baseURL, clientID, clientSecret string) *ApiloConfig {
	return &ApiloConfig{
		APIBaseURL:     baseURL,
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Apilo configuration
func (c *ApiloConfig) Validate() error {
	if c.APIBaseURL == "" {
		return ErrApiloConfigMissingBaseURL
	}
	if c.ClientID == "" {
		return ErrApiloConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrApiloConfigMissingClientSecret
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
