package security

import (
	"fmt"
	"strings"
)

// Config is the immutable per-pipeline security configuration. Build it
// once at startup and share it read-only across requests; nothing in this
// package mutates it after construction.
type Config struct {
	// AllowedMethods is the HTTP method allow-list
	AllowedMethods []string
	// MaxURLLength caps the request URI length
	MaxURLLength int
	// MaxHeaderBytes caps the serialized size of all request headers
	MaxHeaderBytes int
	// AllowedContentTypes is the content-type allow-list for state-changing
	// requests carrying a body (matched on the media type prefix)
	AllowedContentTypes []string
	// MaxBodyBytes caps the request body size
	MaxBodyBytes int64
	// MaxParamNameLength caps parameter and field names
	MaxParamNameLength int
	// MaxParamValueLength caps individual string values
	MaxParamValueLength int
	// EnableSQLInjectionCheck toggles the SQL-injection heuristic
	EnableSQLInjectionCheck bool
	// EnableXSSCheck toggles the HTML/script heuristic
	EnableXSSCheck bool
}

// DefaultConfig returns the production security settings
func DefaultConfig() *Config {
	return &Config{
		AllowedMethods:      []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		MaxURLLength:        2048,
		MaxHeaderBytes:      16 * 1024,
		AllowedContentTypes: []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"},
		MaxBodyBytes:        1 << 20, // 1 MiB
		MaxParamNameLength:  128,
		MaxParamValueLength: 8192,

		EnableSQLInjectionCheck: true,
		EnableXSSCheck:          true,
	}
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if len(c.AllowedMethods) == 0 {
		return fmt.Errorf("security config: allowed methods must not be empty")
	}
	if c.MaxURLLength <= 0 {
		return fmt.Errorf("security config: max URL length must be positive")
	}
	if c.MaxHeaderBytes <= 0 {
		return fmt.Errorf("security config: max header bytes must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("security config: max body bytes must be positive")
	}
	return nil
}

// methodAllowed reports whether the method is in the allow-list
func (c *Config) methodAllowed(method string) bool {
	for _, m := range c.AllowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// contentTypeAllowed matches the declared media type against the allow-list
func (c *Config) contentTypeAllowed(contentType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	for _, allowed := range c.AllowedContentTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}
