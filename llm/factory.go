// Endpoint factory.
package llm

import (
	"fmt"
	"strings"
)

// NewEndpoint creates an endpoint adapter for the named provider.
// Supported providers: openai, anthropic, gemini (plus common aliases).
func NewEndpoint(provider, apiKey, modelName string, maxTokens uint32, temperature float64) (Endpoint, error) {
	switch strings.ToLower(provider) {
	case "openai", "gpt":
		return NewOpenAI(apiKey, modelName, maxTokens, float32(temperature)), nil
	case "anthropic", "claude":
		return NewAnthropic(apiKey, modelName, maxTokens, float32(temperature)), nil
	case "gemini", "google":
		return NewGemini(apiKey, modelName, maxTokens, float32(temperature)), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", provider)
	}
}
