// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings holds all application configuration.
type Settings struct {
	LLM      LLMConfig
	Run      RunConfig
	Pipeline PipelineConfig
}

// LLMConfig holds model endpoint configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32  `env:"LLM_MAX_TOKENS" envDefault:"4096"`
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
}

// RunConfig holds reasoning-loop configuration.
type RunConfig struct {
	StepBudget      int           `env:"RUN_STEP_BUDGET" envDefault:"5"`
	MaxParseRetries int           `env:"RUN_MAX_PARSE_RETRIES" envDefault:"3"`
	CallTimeout     time.Duration `env:"RUN_CALL_TIMEOUT" envDefault:"0"`
	TokenBudget     int           `env:"RUN_TOKEN_BUDGET" envDefault:"0"`
}

// PipelineConfig holds orchestration configuration.
type PipelineConfig struct {
	MaxRevisions    int           `env:"PIPELINE_MAX_REVISIONS" envDefault:"2"`
	StageRetryDelay time.Duration `env:"PIPELINE_STAGE_RETRY_DELAY" envDefault:"500ms"`
}

// providerInfo holds configuration for a specific endpoint provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified provider, loading values from environment variables.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	var settings Settings
	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse environment: %w", err)
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = os.Getenv(info.modelEnv)
	if settings.LLM.Model == "" {
		settings.LLM.Model = info.defaultModel
	}

	return settings, nil
}

// NewDefaults loads environment-driven settings without binding a
// provider. Used when the caller supplies its own endpoint.
func NewDefaults() (Settings, error) {
	var settings Settings
	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("parse environment: %w", err)
	}
	return settings, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}
