package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lucasdpassos/pokedex-assistant/internal/log"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API key validation (required for all model operations)
	if c.APIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY environment variable is required\n"+
			"Get your API key at: https://console.anthropic.com/settings/keys",
			ErrMissingAPIKey)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.MaxTokens < 1 || c.MaxTokens > MaxAllowedTokens {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidMaxTokens, MaxAllowedTokens, c.MaxTokens)
	}

	if c.MaxToolRounds < 1 || c.MaxToolRounds > MaxAllowedToolRounds {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidMaxToolRounds, MaxAllowedToolRounds, c.MaxToolRounds)
	}

	// 3. Server configuration validation
	if c.ServerAddr == "" {
		return fmt.Errorf("%w: server_addr cannot be empty", ErrInvalidServerAddr)
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("%w: rate_limit_rps must be positive, got %v", ErrInvalidRateLimit, c.RateLimitRPS)
	}

	if c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: rate_limit_burst must be at least 1, got %d", ErrInvalidRateLimit, c.RateLimitBurst)
	}

	// 4. Orchestrator configuration validation
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("%w: tool_timeout must be positive, got %v", ErrInvalidToolTimeout, c.ToolTimeout)
	}

	if c.ToolMaxAttempts < 1 || c.ToolMaxAttempts > 10 {
		return fmt.Errorf("%w: tool_max_attempts must be between 1 and 10, got %d",
			ErrInvalidToolRetry, c.ToolMaxAttempts)
	}

	if c.ToolBackoff <= 0 {
		return fmt.Errorf("%w: tool_backoff must be positive, got %v", ErrInvalidToolRetry, c.ToolBackoff)
	}

	// 5. Cache configuration validation
	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidCacheCapacity, c.CacheCapacity)
	}

	for name, ttl := range map[string]time.Duration{
		"cache_ttl":              c.CacheTTL,
		"cache_reference_ttl":    c.CacheReferenceTTL,
		"cache_team_ttl":         c.CacheTeamTTL,
		"cache_cleanup_interval": c.CacheCleanupInterval,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidCacheTTL, name, ttl)
		}
	}

	// 6. PokéAPI configuration validation
	if !strings.HasPrefix(c.PokeAPIBaseURL, "http://") && !strings.HasPrefix(c.PokeAPIBaseURL, "https://") {
		return fmt.Errorf("%w: %q must start with http:// or https://", ErrInvalidPokeAPIBaseURL, c.PokeAPIBaseURL)
	}

	// 7. Logging configuration validation
	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLevels, strings.ToLower(strings.TrimSpace(c.LogLevel))) {
		return fmt.Errorf("%w: %q is not valid, must be one of: debug, info, warn, error",
			ErrInvalidLogLevel, c.LogLevel)
	}

	validFormats := []string{log.FormatText, log.FormatJSON}
	if !slices.Contains(validFormats, c.LogFormat) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidLogFormat, c.LogFormat, validFormats)
	}

	return nil
}
