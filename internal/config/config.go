// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.pokedex/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Model: Anthropic model selection, token budget, tool round bound
//   - Server: HTTP listen address, CORS, per-client rate limiting
//   - Orchestrator: tool timeout/retry defaults and rate limit toggle
//   - Cache: capacity, per-category TTL tiers, cleanup interval
//   - PokéAPI: upstream base URL and timeout
//   - Logging: level and format
//
// Security: the API key is never logged; config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Anthropic API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidMaxToolRounds indicates the tool round bound is out of range.
	ErrInvalidMaxToolRounds = errors.New("invalid max tool rounds")

	// ErrInvalidServerAddr indicates the HTTP listen address is invalid.
	ErrInvalidServerAddr = errors.New("invalid server address")

	// ErrInvalidRateLimit indicates the per-client rate limit is invalid.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidToolTimeout indicates the default tool timeout is out of range.
	ErrInvalidToolTimeout = errors.New("invalid tool timeout")

	// ErrInvalidToolRetry indicates the retry attempt count or backoff is out of range.
	ErrInvalidToolRetry = errors.New("invalid tool retry settings")

	// ErrInvalidCacheCapacity indicates the tool cache capacity is out of range.
	ErrInvalidCacheCapacity = errors.New("invalid cache capacity")

	// ErrInvalidCacheTTL indicates a cache TTL or the cleanup interval is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache ttl")

	// ErrInvalidPokeAPIBaseURL indicates the PokéAPI base URL is invalid.
	ErrInvalidPokeAPIBaseURL = errors.New("invalid pokeapi base url")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat indicates the log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// MaxAllowedTokens is the upper bound for max_tokens.
const MaxAllowedTokens = 64000

// MaxAllowedToolRounds is the upper bound for max_tool_rounds.
const MaxAllowedToolRounds = 8

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// Model configuration
	APIKey        string `mapstructure:"anthropic_api_key" json:"anthropic_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	MaxTokens     int    `mapstructure:"max_tokens" json:"max_tokens"`
	SystemPrompt  string `mapstructure:"system_prompt" json:"system_prompt"` // empty uses the built-in persona
	MaxToolRounds int    `mapstructure:"max_tool_rounds" json:"max_tool_rounds"`

	// HTTP server configuration (serve mode only)
	ServerAddr     string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins    []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy     bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Tool orchestration configuration
	ToolTimeout     time.Duration `mapstructure:"tool_timeout" json:"tool_timeout"`
	ToolMaxAttempts int           `mapstructure:"tool_max_attempts" json:"tool_max_attempts"`
	ToolBackoff     time.Duration `mapstructure:"tool_backoff" json:"tool_backoff"`
	ToolRateLimits  bool          `mapstructure:"tool_rate_limits" json:"tool_rate_limits"`

	// Tool result cache configuration
	CacheCapacity        int           `mapstructure:"cache_capacity" json:"cache_capacity"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	CacheReferenceTTL    time.Duration `mapstructure:"cache_reference_ttl" json:"cache_reference_ttl"`
	CacheTeamTTL         time.Duration `mapstructure:"cache_team_ttl" json:"cache_team_ttl"`
	CacheCleanupInterval time.Duration `mapstructure:"cache_cleanup_interval" json:"cache_cleanup_interval"`

	// PokéAPI configuration
	PokeAPIBaseURL string        `mapstructure:"pokeapi_base_url" json:"pokeapi_base_url"`
	PokeAPITimeout time.Duration `mapstructure:"pokeapi_timeout" json:"pokeapi_timeout"`

	// Logging configuration
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.pokedex/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".pokedex")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Model defaults
	viper.SetDefault("model_name", "claude-sonnet-4-5")
	viper.SetDefault("max_tokens", 4096)
	viper.SetDefault("system_prompt", "")
	viper.SetDefault("max_tool_rounds", 2)

	// Server defaults
	viper.SetDefault("server_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_limit_rps", 5.0)
	viper.SetDefault("rate_limit_burst", 10)

	// Orchestrator defaults
	viper.SetDefault("tool_timeout", 30*time.Second)
	viper.SetDefault("tool_max_attempts", 3)
	viper.SetDefault("tool_backoff", 500*time.Millisecond)
	viper.SetDefault("tool_rate_limits", true)

	// Cache defaults: reference data is near-static, team analyses drift with
	// the upstream data, everything else gets the short default.
	viper.SetDefault("cache_capacity", 1000)
	viper.SetDefault("cache_ttl", 5*time.Minute)
	viper.SetDefault("cache_reference_ttl", 6*time.Hour)
	viper.SetDefault("cache_team_ttl", 10*time.Minute)
	viper.SetDefault("cache_cleanup_interval", time.Minute)

	// PokéAPI defaults
	viper.SetDefault("pokeapi_base_url", "https://pokeapi.co/api/v2")
	viper.SetDefault("pokeapi_timeout", 10*time.Second)

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
}

// bindEnvVariables binds environment variables explicitly.
// ANTHROPIC_API_KEY keeps its conventional name; everything else is
// prefixed POKEDEX_ to avoid collisions.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("anthropic_api_key", "ANTHROPIC_API_KEY")

	mustBind("model_name", "POKEDEX_MODEL_NAME")
	mustBind("max_tokens", "POKEDEX_MAX_TOKENS")
	mustBind("system_prompt", "POKEDEX_SYSTEM_PROMPT")
	mustBind("max_tool_rounds", "POKEDEX_MAX_TOOL_ROUNDS")

	mustBind("server_addr", "POKEDEX_SERVER_ADDR")
	mustBind("cors_origins", "POKEDEX_CORS_ORIGINS")
	mustBind("trust_proxy", "POKEDEX_TRUST_PROXY")

	mustBind("cache_capacity", "POKEDEX_CACHE_CAPACITY")
	mustBind("tool_rate_limits", "POKEDEX_TOOL_RATE_LIMITS")

	mustBind("pokeapi_base_url", "POKEDEX_POKEAPI_BASE_URL")

	mustBind("log_level", "POKEDEX_LOG_LEVEL")
	mustBind("log_format", "POKEDEX_LOG_FORMAT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer ones keep the
// first and last 2 characters for debug utility.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - APIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
