package failover

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/insightgym/insightgym/internal/provider"
)

// Controller runs a single completion against the primary model and walks
// the fallback list on retryable errors. The whole attempt chain shares one
// bounded timeout; when it elapses the result is ErrUnavailable, never a
// partial response.
type Controller struct {
	provider  provider.Provider
	primary   string
	fallbacks []string
	timeout   time.Duration
}

func NewController(p provider.Provider, primary string, fallbacks []string, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Controller{
		provider:  p,
		primary:   primary,
		fallbacks: fallbacks,
		timeout:   timeout,
	}
}

// Generate satisfies the orchestrator's text-generation capability:
// one system prompt, one user prompt, bounded tokens. Returns the raw
// completion text or ErrUnavailable.
func (c *Controller) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &provider.CompletionRequest{
		MaxTokens: maxTokens,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: systemPrompt},
			{Role: provider.RoleUser, Content: userPrompt},
		},
	}

	models := append([]string{c.primary}, c.fallbacks...)
	attempted := make([]string, 0, len(models))

	for _, m := range models {
		if containsModel(attempted, m) {
			continue
		}
		attempted = append(attempted, m)

		req.Model = m
		resp, err := c.provider.Complete(genCtx, req)
		if err == nil {
			return resp.Content, nil
		}

		if genCtx.Err() != nil {
			log.Printf("failover: generation timed out after %s (model %s)", c.timeout, m)
			return "", ErrUnavailable
		}
		if !IsRetryable(err) {
			log.Printf("failover: model %s failed (not retryable): %v", m, err)
			return "", errors.Join(ErrUnavailable, err)
		}
		log.Printf("failover: model %s failed, trying next: %v", m, err)
	}

	return "", errors.Join(ErrUnavailable, &AllExhaustedError{Attempted: attempted})
}

func containsModel(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
