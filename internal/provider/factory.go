package provider

import "fmt"

const (
	APIOpenAI    = "openai-completions"
	APIAnthropic = "anthropic-messages"
)

// APIError is a non-2xx response from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// FromConfig creates a Provider from config values. The api field
// determines which wire format to use:
//   - "openai-completions"  -> OpenAI-compatible (OpenAI, Ollama, vLLM, etc.)
//   - "anthropic-messages"  -> Anthropic Messages API
func FromConfig(id, api, baseURL, apiKey string) (Provider, error) {
	switch api {
	case APIOpenAI, "":
		return NewOpenAIProvider(id, baseURL, apiKey), nil
	case APIAnthropic:
		return NewAnthropicProvider(id, baseURL, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown api type %q for provider %q (supported: %s, %s)",
			api, id, APIOpenAI, APIAnthropic)
	}
}
