package commerce

import (
	"errors"
	"net/url"
	"time"
)

// Config holds the remote commerce platform connection
type Config struct {
	// Endpoint is the GraphQL admin endpoint, e.g. https://shop.example.com/admin/api/graphql.json
	Endpoint string
	// AccessToken is sent in the X-Commerce-Access-Token header
	AccessToken string
	// Timeout bounds every remote call
	Timeout time.Duration
}

// Errors for commerce configuration
var (
	ErrConfigMissingEndpoint    = errors.New("commerce: endpoint is required")
	ErrConfigInvalidEndpoint    = errors.New("commerce: endpoint must be an absolute URL")
	ErrConfigMissingAccessToken = errors.New("commerce: access token is required")
)

// DefaultTimeout applies when Config.Timeout is zero
const DefaultTimeout = 30 * time.Second

// Validate checks the configuration and fills the default timeout
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrConfigMissingEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrConfigInvalidEndpoint
	}
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}
