package config

import (
	"fmt"
	"net/url"
	"os"
)

// WebConfig configures the static asset server.
type WebConfig struct {
	Port               string
	StaticDir          string
	APIProxyURL        string
	RateLimitPerMinute int
	LogLevel           string
}

func LoadWeb() *WebConfig {
	return &WebConfig{
		Port:               getEnv("PORT", "3000"),
		StaticDir:          getEnv("STATIC_DIR", ""),
		APIProxyURL:        getEnv("API_PROXY_URL", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 300),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func (c *WebConfig) Validate() error {
	errors := validatePort(c.Port)

	if c.StaticDir != "" {
		info, err := os.Stat(c.StaticDir)
		if err != nil {
			errors = append(errors, fmt.Sprintf("STATIC_DIR '%s' is not readable: %v", c.StaticDir, err))
		} else if !info.IsDir() {
			errors = append(errors, fmt.Sprintf("STATIC_DIR '%s' is not a directory", c.StaticDir))
		}
	}

	if c.APIProxyURL != "" {
		if u, err := url.Parse(c.APIProxyURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API_PROXY_URL '%s': %v", c.APIProxyURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API_PROXY_URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}

	if c.RateLimitPerMinute < 1 || c.RateLimitPerMinute > 10000 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be between 1 and 10000", c.RateLimitPerMinute))
	}

	return joinErrors(errors)
}
